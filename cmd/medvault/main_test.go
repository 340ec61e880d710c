package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/config"
	"github.com/medvault/medvault/internal/domain/patient"
	"github.com/medvault/medvault/internal/platform/telemetry"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                     "test",
		StoreDriver:             "memory",
		DeletePolicy:            "orphan",
		EnforcePatientReference: true,
		BodyLimit:               "1M",
		ImportBodyLimit:         "10M",
		RequestTimeout:          5 * time.Second,
		MetricsEnabled:          true,
		CORSOrigins:             []string{"http://localhost:5173"},
		ConsentAgreementText:    patient.DefaultAgreementText,
	}
}

func newTestServer(t *testing.T) *httptestServer {
	t.Helper()
	a, err := newApp(context.Background(), testConfig(), zerolog.Nop(), telemetry.Config{ServiceName: "medvault-test"})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return &httptestServer{t: t, handler: newServer(a)}
}

type httptestServer struct {
	t       *testing.T
	handler http.Handler
}

func (s *httptestServer) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

const patientBody = `{"firstName":"Anna","lastName":"Jansen","initials":"A.","dob":"1980-02-01","gender":"Female","email":"anna@example.com","phone":"0612345678","address":"Dorpsstraat 1"}`

func TestServer_PatientLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/api/v1/patients", patientBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create patient: %d %s", rec.Code, rec.Body.String())
	}
	var p patient.Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	wantPrefix := time.Now().Format("2006") + "-"
	if !strings.HasPrefix(p.ID, wantPrefix) {
		t.Errorf("expected id with prefix %s, got %s", wantPrefix, p.ID)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}

	record := `{"date":"2024-05-01","type":"Treatment","provider":"Dr. B","complaint":"c","diagnosis":"d","treatment":"t"}`
	if rec := srv.do(http.MethodPost, "/api/v1/patients/"+p.ID+"/records", record); rec.Code != http.StatusCreated {
		t.Fatalf("create record: %d %s", rec.Code, rec.Body.String())
	}
	appt := `{"patientId":"` + p.ID + `","type":"Treatment","start":"2099-01-01T09:00:00Z","durationMinutes":30}`
	if rec := srv.do(http.MethodPost, "/api/v1/appointments", appt); rec.Code != http.StatusCreated {
		t.Fatalf("create appointment: %d %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(http.MethodGet, "/api/v1/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: %d", rec.Code)
	}
	var sum struct {
		TotalPatients        int `json:"totalPatients"`
		UpcomingAppointments int `json:"upcomingAppointments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.TotalPatients != 1 || sum.UpcomingAppointments != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}

	// default policy orphans dependents
	if rec := srv.do(http.MethodDelete, "/api/v1/patients/"+p.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete patient: %d %s", rec.Code, rec.Body.String())
	}
	rec = srv.do(http.MethodGet, "/api/v1/records?patientId="+p.ID, "")
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected the orphaned record to remain, got %s", rec.Body.String())
	}
}

func TestServer_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(http.MethodPost, "/api/v1/patients", `{"firstName":"Anna","email":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid email address") {
		t.Errorf("expected email message, got %s", rec.Body.String())
	}
}

func TestServer_ExportImport(t *testing.T) {
	srv := newTestServer(t)
	if rec := srv.do(http.MethodPost, "/api/v1/patients", patientBody); rec.Code != http.StatusCreated {
		t.Fatal(rec.Body.String())
	}

	rec := srv.do(http.MethodGet, "/api/v1/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	exported := rec.Body.String()

	if rec := srv.do(http.MethodDelete, "/api/v1/data", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("clear: %d", rec.Code)
	}
	if rec := srv.do(http.MethodGet, "/api/v1/patients", ""); !strings.Contains(rec.Body.String(), `"total":0`) {
		t.Fatalf("expected no patients after clear, got %s", rec.Body.String())
	}

	rec = srv.do(http.MethodPost, "/api/v1/import", exported)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body.String())
	}
	if rec := srv.do(http.MethodGet, "/api/v1/patients", ""); !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected the patient back after import, got %s", rec.Body.String())
	}

	if rec := srv.do(http.MethodPost, "/api/v1/import", `[1,2,3]`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-object payload, got %d", rec.Code)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"driver":"memory"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	srv.do(http.MethodGet, "/api/v1/patients", "")
	rec = srv.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "medvault_http_requests_total") || !strings.Contains(body, "medvault_store_operation_duration_seconds") {
		t.Errorf("expected request and store metrics, got:\n%s", body)
	}
}

func TestNewApp_RejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.DeletePolicy = "shred"
	if _, err := newApp(context.Background(), cfg, zerolog.Nop(), telemetry.Config{}); err == nil {
		t.Fatal("expected an error for an unknown delete policy")
	}
}

func TestClearCmd_RequiresConfirmation(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	cmd := rootCmd()
	cmd.SetArgs([]string{"clear"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected confirmation error, got %v", err)
	}
}

func TestExportImportCmd_LevelDB(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORE_DRIVER", "leveldb")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("ENV", "test")

	in := filepath.Join(dir, "in.json")
	payload := `{"patients":[{"id":"2024-001","firstName":"Anna","lastName":"Jansen"}]}`
	if err := os.WriteFile(in, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"import", in})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out.String(), "Applied: [patients]") {
		t.Errorf("unexpected import output %q", out.String())
	}

	exported := filepath.Join(dir, "out.json")
	cmd = rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"export", "-o", exported})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"id":"2024-001"`) || !strings.Contains(string(data), `"appointments":[]`) {
		t.Errorf("unexpected export %s", data)
	}
}
