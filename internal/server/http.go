package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmmcquay/endgame-mcp/internal/health"
	"github.com/dmmcquay/endgame-mcp/internal/logging"
	"github.com/dmmcquay/endgame-mcp/internal/metrics"
)

// HTTPServer provides HTTP endpoints for health checks and metrics.
type HTTPServer struct {
	server  *http.Server
	logger  logging.ContextLogger
	checker *health.Checker

	mu   sync.Mutex
	addr net.Addr
}

// NewHTTPServer creates a new HTTP server for health checks and metrics.
// gatherer is the registry the collector was built on.
func NewHTTPServer(addr string, logger logging.ContextLogger, checker *health.Checker, collector *metrics.Collector, gatherer prometheus.Gatherer) *HTTPServer {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", checker.LivenessHandler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &HTTPServer{
		server: &http.Server{
			Addr:         addr,
			Handler:      PrometheusMiddleware(collector)(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:  logger,
		checker: checker,
	}
}

// Start binds the listener and serves in the background.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("Starting HTTP health check server", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Addr is the bound address, or nil before Start.
func (s *HTTPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop gracefully stops the HTTP server.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP health check server")
	return s.server.Shutdown(ctx)
}
