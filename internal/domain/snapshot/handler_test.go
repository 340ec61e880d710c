package snapshot

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/platform/middleware"
)

func fixedNow() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) }

func TestHandler_Export(t *testing.T) {
	svc, _, _ := seeded(t)
	h := NewHandler(svc, fixedNow)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/export", nil), rec)

	if err := h.Export(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(got, "medvault-export-2024-05-10.json") {
		t.Errorf("unexpected content disposition %q", got)
	}
	if !strings.Contains(rec.Body.String(), `"medicalRecords"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Import(t *testing.T) {
	svc, _, _ := seeded(t)
	h := NewHandler(svc, fixedNow)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(`{"patients":[]}`)), rec)
	if err := h.Import(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"applied":["patients"]`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(`garbage`)), httptest.NewRecorder())
	err := h.Import(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_Import_BodyTooLarge(t *testing.T) {
	svc, _, _ := seeded(t)
	h := NewHandler(svc, fixedNow)

	req := httptest.NewRequest(http.MethodPost, middleware.ImportPath, strings.NewReader(`{"patients":[],"appointments":[]}`))
	req.ContentLength = -1
	c := echo.New().NewContext(req, httptest.NewRecorder())

	err := middleware.BodyLimit("1M", "10")(h.Import)(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
}

func TestHandler_Clear(t *testing.T) {
	svc, _, _ := seeded(t)
	h := NewHandler(svc, fixedNow)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodDelete, "/data", nil), rec)
	if err := h.Clear(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
