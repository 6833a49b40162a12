package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmmcquay/endgame-mcp/internal/health"
	"github.com/dmmcquay/endgame-mcp/internal/logging"
	"github.com/dmmcquay/endgame-mcp/internal/metrics"
)

func newTestServer(t *testing.T, addr string, engineErr error) *HTTPServer {
	t.Helper()
	logger := logging.NewNop()
	checker := health.NewChecker(logger, "1.0.0", "abc123")
	checker.RegisterCheck("engine", func(ctx context.Context) error { return engineErr })

	reg := prometheus.NewRegistry()
	return NewHTTPServer(addr, logger, checker, metrics.NewCollector(reg), reg)
}

func TestNewHTTPServer(t *testing.T) {
	server := newTestServer(t, ":8080", nil)
	if server.server.Addr != ":8080" {
		t.Errorf("Expected addr :8080, got %s", server.server.Addr)
	}
	if server.Addr() != nil {
		t.Errorf("Expected no bound address before Start, got %v", server.Addr())
	}
}

func TestHTTPServerStartStop(t *testing.T) {
	server := newTestServer(t, "127.0.0.1:0", nil)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.Addr() == nil {
		t.Fatal("Expected bound address after Start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := newTestServer(t, "127.0.0.1:0", nil)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	base := "http://" + server.Addr().String()

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("Failed to get %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, resp.StatusCode)
		}
		var body health.Response
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode %s response: %v", path, err)
		}
		resp.Body.Close()
		if body.Status != health.StatusHealthy {
			t.Errorf("%s: expected healthy status, got %s", path, body.Status)
		}
	}

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("Failed to get /metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `endgame_mcp_http_requests_total{method="GET",path="/health",status="200"} 1`) {
		t.Errorf("Expected /health request in metrics output, got:\n%s", raw)
	}
}

func TestReadyReportsEngineFailure(t *testing.T) {
	server := newTestServer(t, ":0", errors.New("engine crashed"))

	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rec.Code)
	}
}
