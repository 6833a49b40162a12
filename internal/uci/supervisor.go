package uci

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmmcquay/endgame-mcp/internal/logging"
	"github.com/dmmcquay/endgame-mcp/internal/retry"
)

// Supervisor owns the current Session. It starts one lazily, retries
// spawn failures with backoff, and replaces a terminated session on the
// next call. It never resubmits a request that failed with the session.
type Supervisor struct {
	spawner Spawner
	opts    Options
	logger  logging.ContextLogger
	retry   *retry.Manager

	// startMu serialises session creation so concurrent first calls share
	// one process.
	startMu sync.Mutex

	mu       sync.Mutex
	session  *Session
	restarts int
	closed   bool
}

// NewSupervisor creates a supervisor; no process is started until the
// first request.
func NewSupervisor(spawner Spawner, opts Options, retryCfg retry.Config) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	s := &Supervisor{
		spawner: spawner,
		opts:    opts,
		logger:  opts.Logger,
		retry:   retry.NewManager(retryCfg),
	}
	s.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.logger.Warn("Engine spawn failed, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
	}
	return s
}

func (s *Supervisor) RequestBestMove(ctx context.Context, fen string) (*Move, error) {
	sess, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return sess.RequestBestMove(ctx, fen)
}

func (s *Supervisor) RequestEvaluation(ctx context.Context, fen string) (*Evaluation, error) {
	sess, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return sess.RequestEvaluation(ctx, fen)
}

func (s *Supervisor) NewGame(ctx context.Context) error {
	sess, err := s.current(ctx)
	if err != nil {
		return err
	}
	return sess.NewGame(ctx)
}

// Ping starts the engine if needed and round-trips an isready.
func (s *Supervisor) Ping(ctx context.Context) error {
	sess, err := s.current(ctx)
	if err != nil {
		return err
	}
	return sess.Ping(ctx)
}

// Restart terminates the current session, if any, and starts a new one,
// waiting until it answers an isready.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	old := s.session
	s.session = nil
	s.mu.Unlock()

	if old != nil {
		if err := old.Terminate(ctx); err != nil {
			s.logger.Warn("Failed to stop engine cleanly", "error", err)
		}
	}

	sess, err := s.startLocked(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.restarts++
	s.mu.Unlock()
	s.observer().RecordEngineRestart()

	if err := sess.Ping(ctx); err != nil {
		return fmt.Errorf("engine not responsive after restart: %w", err)
	}
	s.logger.Info("Engine restarted", "name", sess.EngineName())
	return nil
}

// Stop terminates the current session. A later request starts a new one.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.Terminate(ctx)
}

// Close stops the engine for good; later calls fail with ErrSessionClosed.
func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Stop(ctx)
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	sess, restarts := s.session, s.restarts
	s.mu.Unlock()

	if sess == nil {
		return Status{State: StateUninitialized.String(), Restarts: restarts}
	}
	return Status{
		State:    sess.State().String(),
		Engine:   sess.EngineName(),
		Pending:  sess.Pending(),
		Restarts: restarts,
	}
}

// current returns a live session, creating one when there is none or the
// last one terminated.
func (s *Supervisor) current(ctx context.Context) (*Session, error) {
	if sess, err := s.live(); sess != nil || err != nil {
		return sess, err
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	// Another caller may have started one while we waited.
	if sess, err := s.live(); sess != nil || err != nil {
		return sess, err
	}
	return s.startLocked(ctx)
}

func (s *Supervisor) live() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.session == nil {
		return nil, nil
	}
	if s.session.State() == StateTerminated {
		s.logger.Warn("Replacing terminated engine session")
		s.session = nil
		s.restarts++
		s.observer().RecordEngineRestart()
		return nil, nil
	}
	return s.session, nil
}

func (s *Supervisor) observer() Observer {
	if s.opts.Observer == nil {
		return nopObserver{}
	}
	return s.opts.Observer
}

// startLocked requires startMu.
func (s *Supervisor) startLocked(ctx context.Context) (*Session, error) {
	sess := NewSession(s.spawner, s.opts)
	err := s.retry.Run(ctx, func(ctx context.Context) error {
		err := sess.Start(ctx)
		if err != nil && !errors.Is(err, ErrProcessSpawnFailed) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		go func() { _ = sess.Terminate(context.Background()) }()
		return nil, ErrSessionClosed
	}
	s.session = sess
	return sess, nil
}
