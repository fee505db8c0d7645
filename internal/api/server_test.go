package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/minleaf/sieve/internal/metrics"
	"github.com/minleaf/sieve/internal/storage/report"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()

	srv, err := NewServer(Config{
		Host:     "localhost",
		Port:     0,
		APIToken: token,
	}, Dependencies{
		Reports: report.NewMemoryStore(10),
		Metrics: metrics.NewRegistry(),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func ingest(t *testing.T, srv *Server, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/ingest", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestServer_IngestAndLatest(t *testing.T) {
	srv := newTestServer(t, "write-token")

	w := ingest(t, srv, "write-token",
		`{"run_date":"2024-01-03","results":[{"code":"600000"},{"code":"000001"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("ingest returned %d: %s", w.Code, w.Body.String())
	}

	var ack map[string]any
	json.Unmarshal(w.Body.Bytes(), &ack)
	if ack["success"] != true {
		t.Errorf("ack success = %v", ack["success"])
	}
	if ack["inserted"] != float64(2) {
		t.Errorf("ack inserted = %v, want 2", ack["inserted"])
	}

	req := httptest.NewRequest("GET", "/api/screening/latest", nil)
	rw := httptest.NewRecorder()
	srv.mux.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("latest returned %d", rw.Code)
	}
	var env map[string]any
	json.Unmarshal(rw.Body.Bytes(), &env)
	data := env["data"].(map[string]any)
	if data["run_date"] != "2024-01-03" {
		t.Errorf("latest run_date = %v", data["run_date"])
	}
	if data["inserted"] != float64(2) {
		t.Errorf("latest inserted = %v", data["inserted"])
	}
}

func TestServer_Ingest_RequiresToken(t *testing.T) {
	srv := newTestServer(t, "write-token")

	w := ingest(t, srv, "", `{"run_date":"2024-01-03","results":[]}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 without token, got %d", w.Code)
	}

	w = ingest(t, srv, "wrong", `{"run_date":"2024-01-03","results":[]}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 with wrong token, got %d", w.Code)
	}
}

func TestServer_Ingest_BadJSON(t *testing.T) {
	srv := newTestServer(t, "")

	w := ingest(t, srv, "", `{"run_date":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "INVALID_PAYLOAD") {
		t.Errorf("expected INVALID_PAYLOAD error, got %s", w.Body.String())
	}
}

func TestServer_Ingest_MissingRunDate(t *testing.T) {
	srv := newTestServer(t, "")

	w := ingest(t, srv, "", `{"results":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestServer_Latest_Empty(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/api/screening/latest", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on empty store, got %d", w.Code)
	}
}

func TestServer_Dates(t *testing.T) {
	srv := newTestServer(t, "")

	ingest(t, srv, "", `{"run_date":"2024-01-03","results":[]}`)
	ingest(t, srv, "", `{"run_date":"2024-01-05","results":[]}`)

	req := httptest.NewRequest("GET", "/api/screening/dates", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("dates returned %d", w.Code)
	}
	var env map[string]any
	json.Unmarshal(w.Body.Bytes(), &env)
	data := env["data"].(map[string]any)
	dates := data["dates"].([]any)
	if len(dates) != 2 || dates[0] != "2024-01-05" {
		t.Errorf("dates = %v, want newest first", dates)
	}
}

func TestServer_ByDate(t *testing.T) {
	srv := newTestServer(t, "")

	ingest(t, srv, "", `{"run_date":"2024-01-03","results":[{"code":"600000"}]}`)

	req := httptest.NewRequest("GET", "/api/screening/2024-01-03", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("by-date returned %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/screening/2024-01-04", nil)
	w = httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown date, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("metrics returned %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected runtime metrics in exposition")
	}
}

func TestServer_Ingest_WrongMethod(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/api/ingest", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}
