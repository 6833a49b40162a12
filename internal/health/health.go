package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmmcquay/endgame-mcp/internal/logging"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded means an optional component failed; the server still
	// answers requests.
	StatusDegraded Status = "degraded"
)

// checkTimeout bounds each individual check.
const checkTimeout = 5 * time.Second

// Check represents a health check function.
type Check func(ctx context.Context) error

// Pinger is anything with a liveness round trip, such as the engine
// supervisor or a Redis store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger to a Check.
func PingCheck(p Pinger) Check {
	return p.Ping
}

// Component represents a system component with health status.
type Component struct {
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Response represents the health check response.
type Response struct {
	Status     Status      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	Components []Component `json:"components,omitempty"`
	Version    string      `json:"version,omitempty"`
	GitCommit  string      `json:"git_commit,omitempty"`
}

type registered struct {
	check    Check
	optional bool
}

// Checker manages health checks for the application.
type Checker struct {
	logger    logging.ContextLogger
	checks    map[string]registered
	mu        sync.RWMutex
	version   string
	gitCommit string

	// OnResult, when set, is told the outcome of every check.
	OnResult func(name string, healthy bool)
}

// NewChecker creates a new health checker.
func NewChecker(logger logging.ContextLogger, version, gitCommit string) *Checker {
	return &Checker{
		logger:    logger,
		checks:    make(map[string]registered),
		version:   version,
		gitCommit: gitCommit,
	}
}

// RegisterCheck registers a required component; its failure makes the
// server unhealthy.
func (c *Checker) RegisterCheck(name string, check Check) {
	c.register(name, check, false)
}

// RegisterOptionalCheck registers a component whose failure only degrades
// the server.
func (c *Checker) RegisterOptionalCheck(name string, check Check) {
	c.register(name, check, true)
}

func (c *Checker) register(name string, check Check, optional bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registered{check: check, optional: optional}
}

// CheckHealth runs all registered checks in parallel.
func (c *Checker) CheckHealth(ctx context.Context) Response {
	c.mu.RLock()
	checks := make(map[string]registered, len(c.checks))
	for name, r := range c.checks {
		checks[name] = r
	}
	c.mu.RUnlock()

	response := Response{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		GitCommit:  c.gitCommit,
		Components: make([]Component, 0, len(checks)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, r := range checks {
		g.Go(func() error {
			component := Component{
				Name:        name,
				Status:      StatusHealthy,
				LastChecked: time.Now().UTC(),
			}

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			if err := r.check(checkCtx); err != nil {
				component.Status = StatusUnhealthy
				if r.optional {
					component.Status = StatusDegraded
				}
				component.Message = err.Error()
				c.logger.WithField("component", name).Error("Health check failed", "error", err)
			}
			if c.OnResult != nil {
				c.OnResult(name, component.Status == StatusHealthy)
			}

			mu.Lock()
			response.Components = append(response.Components, component)
			mu.Unlock()
			// Failures are reported per component, never as a group error.
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(response.Components, func(i, j int) bool {
		return response.Components[i].Name < response.Components[j].Name
	})
	for _, comp := range response.Components {
		switch comp.Status {
		case StatusUnhealthy:
			response.Status = StatusUnhealthy
		case StatusDegraded:
			if response.Status == StatusHealthy {
				response.Status = StatusDegraded
			}
		}
	}
	return response
}

// LivenessHandler returns an HTTP handler for liveness checks.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// If we can handle requests, we're alive
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := Response{
			Status:    StatusHealthy,
			Timestamp: time.Now().UTC(),
			Version:   c.version,
			GitCommit: c.gitCommit,
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			c.logger.Error("Failed to encode liveness response", "error", err)
		}
	}
}

// ReadinessHandler answers 503 only when a required component is
// unhealthy.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWithCorrelationID(r.Context(), logging.GenerateCorrelationID())
		logger := c.logger.WithContext(ctx)

		logger.Debug("Performing readiness check")

		response := c.CheckHealth(ctx)

		w.Header().Set("Content-Type", "application/json")
		statusCode := http.StatusOK
		if response.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Error("Failed to encode readiness response", "error", err)
		}
	}
}
