package health

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/dmmcquay/endgame-mcp/internal/cache"
	"github.com/dmmcquay/endgame-mcp/internal/uci"
)

func TestEngineCheck(t *testing.T) {
	engine := uci.NewMockEngine()
	checker := newTestChecker()
	checker.RegisterCheck("engine", PingCheck(engine))

	tests := []struct {
		name     string
		pingErr  error
		expected Status
	}{
		{"engine responsive", nil, StatusHealthy},
		{"engine crashed", uci.ErrEngineCrashed, StatusUnhealthy},
		{"engine closed", uci.ErrSessionClosed, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine.SetPingError(tt.pingErr)
			response := checker.CheckHealth(context.Background())
			if response.Status != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, response.Status)
			}
			if tt.pingErr != nil && response.Components[0].Message != tt.pingErr.Error() {
				t.Errorf("Expected message %q, got %q", tt.pingErr, response.Components[0].Message)
			}
		})
	}

	if engine.PingCalls() != len(tests) {
		t.Errorf("Expected %d pings, got %d", len(tests), engine.PingCalls())
	}
}

func TestRedisCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cache.DialRedis(context.Background(), "redis://"+mr.Addr(), "endgame:")
	if err != nil {
		t.Fatalf("Failed to dial redis: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	checker := newTestChecker()
	checker.RegisterCheck("engine", PingCheck(uci.NewMockEngine()))
	checker.RegisterOptionalCheck("tablebase_cache", PingCheck(store))

	if got := checker.CheckHealth(context.Background()).Status; got != StatusHealthy {
		t.Fatalf("Expected healthy, got %s", got)
	}

	mr.Close()
	if got := checker.CheckHealth(context.Background()).Status; got != StatusDegraded {
		t.Errorf("Expected degraded, got %s", got)
	}
}
