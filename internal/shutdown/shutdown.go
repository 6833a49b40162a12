package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmmcquay/endgame-mcp/internal/logging"
)

// DefaultTimeout bounds a signal-triggered shutdown.
const DefaultTimeout = 30 * time.Second

// Manager coordinates graceful shutdown of multiple components.
type Manager struct {
	logger       logging.ContextLogger
	components   []component
	mu           sync.Mutex
	done         chan struct{}
	shutdownOnce sync.Once
	err          error
}

type component struct {
	name string
	fn   func(context.Context) error
}

// NewManager creates a new shutdown manager.
func NewManager(logger logging.ContextLogger) *Manager {
	return &Manager{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Register adds a component to stop during shutdown. All registered
// components are stopped concurrently and share one deadline.
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, fn: fn})
}

func (m *Manager) stop(ctx context.Context, c component) error {
	logger := m.logger.WithField("component", c.name)
	logger.Info("Shutting down component")

	start := time.Now()
	err := c.fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("Failed to shutdown component", "error", err, "elapsed", elapsed)
		return fmt.Errorf("%s: %w", c.name, err)
	}
	logger.Info("Component shutdown complete", "elapsed", elapsed)
	return nil
}

// HandleSignals triggers Shutdown on SIGINT or SIGTERM.
func (m *Manager) HandleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			m.logger.Info("Received shutdown signal", "signal", sig.String())
			m.Shutdown(DefaultTimeout)
		case <-m.done:
		}
		signal.Stop(sigCh)
	}()
}

// Shutdown stops every registered component within timeout. Only the first
// call does any work; later calls wait for it and return the same result.
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.shutdownOnce.Do(func() {
		defer close(m.done)

		m.logger.Info("Starting graceful shutdown", "timeout", timeout)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		m.mu.Lock()
		components := append([]component(nil), m.components...)
		m.mu.Unlock()

		var (
			errMu sync.Mutex
			errs  []error
			g     errgroup.Group
		)
		for _, c := range components {
			g.Go(func() error {
				if err := m.stop(ctx, c); err != nil {
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
				}
				return nil
			})
		}

		finished := make(chan struct{})
		go func() {
			_ = g.Wait()
			close(finished)
		}()

		select {
		case <-finished:
			m.err = errors.Join(errs...)
			if m.err != nil {
				m.logger.Error("Graceful shutdown completed with errors", "errors", len(errs))
			} else {
				m.logger.Info("Graceful shutdown completed successfully")
			}
		case <-ctx.Done():
			m.err = fmt.Errorf("shutdown timed out after %s: %w", timeout, ctx.Err())
			m.logger.Error("Graceful shutdown timed out", "timeout", timeout)
		}
	})
	<-m.done
	return m.err
}

// Done returns a channel that's closed when shutdown is complete.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// WaitForShutdown blocks until shutdown is complete and returns its result.
func (m *Manager) WaitForShutdown() error {
	<-m.done
	return m.err
}
