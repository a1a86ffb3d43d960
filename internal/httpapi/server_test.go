package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimechecker/internal/httpapi/middleware"
)

func TestServer_Healthz(t *testing.T) {
	log := zap.NewNop()
	srv := NewServer(log, nil, "node-1", "fsn1", nil, nil)
	ts := httptest.NewServer(srv.Router(middleware.Keys{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_MetricsReportsUnknownStateWithoutHeartbeater(t *testing.T) {
	log := zap.NewNop()
	srv := NewServer(log, nil, "node-1", "fsn1", nil, nil)
	ts := httptest.NewServer(srv.Router(middleware.Keys{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_DebugRingRequiresAdminKey(t *testing.T) {
	log := zap.NewNop()
	srv := NewServer(log, nil, "node-1", "fsn1", nil, nil)
	keys := middleware.Keys{Admin: []string{"adm_test"}}
	ts := httptest.NewServer(srv.Router(keys))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/debug/ring")
	if err != nil {
		t.Fatalf("GET /debug/ring: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without an admin key, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/debug/ring", nil)
	req.Header.Set("X-API-Key", "adm_test")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /debug/ring with key: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 (no heartbeater wired), got %d", resp2.StatusCode)
	}
}
