package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveWithHeaders(t *testing.T, req *http.Request, origins []string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	err := SecurityHeaders(origins)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

func TestSecurityHeaders_JSONRoutes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	rec := serveWithHeaders(t, req, []string{"http://localhost:5173"})

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"X-Frame-Options":         "DENY",
	}
	for header, v := range want {
		if got := rec.Header().Get(header); got != v {
			t.Errorf("header %s: got %q, want %q", header, got, v)
		}
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("plain HTTP must not carry HSTS, got %q", got)
	}
}

func TestSecurityHeaders_PDFFramableByUI(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/2024-001/consent/pdf", nil)
	rec := serveWithHeaders(t, req, []string{"http://localhost:5173", "http://127.0.0.1:5173"})

	want := "default-src 'none'; frame-ancestors 'self' http://localhost:5173 http://127.0.0.1:5173"
	if got := rec.Header().Get("Content-Security-Policy"); got != want {
		t.Errorf("csp: got %q, want %q", got, want)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "" {
		t.Errorf("pdf responses must not send X-Frame-Options, got %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("pdf responses must not be cached, got %q", got)
	}
}

func TestSecurityHeaders_HSTSBehindHTTPSProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set(echo.HeaderXForwardedProto, "https")
	rec := serveWithHeaders(t, req, nil)

	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000" {
		t.Errorf("expected HSTS over https, got %q", got)
	}
}

func TestSecurityHeaders_SetOnHandlerError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/records/missing", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	err := SecurityHeaders(nil)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "medical record not found")
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected the handler's 404, got %v", err)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected headers to be set before the error is rendered")
	}
}
