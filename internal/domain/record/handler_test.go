package record

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_CreateRecord(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	h := NewHandler(svc)
	e := echo.New()

	body := `{"date":"2024-05-01","type":"Consultation","provider":"Dr. B","complaint":"c","diagnosis":"d","treatment":"t","notes":"","medications":[],"aftercare":[]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("2024-001")

	if err := h.CreateRecord(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got MedicalRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.PatientID != "2024-001" {
		t.Errorf("expected path patient id, got %q", got.PatientID)
	}
	if !strings.Contains(rec.Body.String(), `"images":[]`) {
		t.Errorf("empty lists should encode as [], got %s", rec.Body.String())
	}
}

func TestHandler_CreateRecord_UnknownPatient(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	h := NewHandler(svc)
	e := echo.New()

	body := `{"date":"2024-05-01","type":"Consultation","provider":"Dr. B","complaint":"c","diagnosis":"d","treatment":"t"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("2024-404")

	err := h.CreateRecord(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestHandler_RecordPDF(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	h := NewHandler(svc)
	e := echo.New()

	created, err := svc.Create(context.Background(), "2024-001", validCommand("2024-05-01"))
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id", "recordId")
	c.SetParamValues("2024-001", created.ID)
	if err := h.RecordPDF(c); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF-") {
		t.Error("expected a PDF body")
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id", "recordId")
	c.SetParamValues("2024-002", created.ID)
	err = h.RecordPDF(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a record of another patient, got %v", err)
	}
}

func TestHandler_ListRecords(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	h := NewHandler(svc)
	ctx := context.Background()
	for _, p := range []string{"P1", "P2", "P1"} {
		if _, err := svc.Create(ctx, p, validCommand("2024-05-01")); err != nil {
			t.Fatal(err)
		}
	}

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/records?patientId=P1", nil), rec)
	if err := h.ListRecords(c); err != nil {
		t.Fatal(err)
	}

	var body struct {
		Data  []MedicalRecord `json:"data"`
		Total int             `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 2 || len(body.Data) != 2 {
		t.Errorf("expected 2 records for P1, got %+v", body)
	}
}

func TestHandler_GetRecord_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	h := NewHandler(svc)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.GetRecord(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
