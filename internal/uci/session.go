package uci

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmmcquay/endgame-mcp/internal/config"
	"github.com/dmmcquay/endgame-mcp/internal/logging"
)

// State is the lifecycle stage of a Session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateBusy
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Kind identifies what a request waits for.
type Kind int

const (
	KindBestMove Kind = iota
	KindEvaluation
	// KindSync waits for readyok after an isready.
	KindSync
)

func (k Kind) String() string {
	switch k {
	case KindBestMove:
		return "bestmove"
	case KindEvaluation:
		return "evaluation"
	default:
		return "sync"
	}
}

// Evaluation is the outcome of RequestEvaluation. Centipawns and MateIn are
// from the side to move; both nil means the engine reported no score.
type Evaluation struct {
	Centipawns *int   `json:"centipawns"`
	MateIn     *int   `json:"mateIn"`
	Depth      int    `json:"depth"`
	PV         []Move `json:"pv"`
	BestMove   *Move  `json:"bestMove"`
}

// HasScore reports whether the engine produced a score.
func (e *Evaluation) HasScore() bool {
	return e.Centipawns != nil || e.MateIn != nil
}

// EngineOption is sent as "setoption name <Name> value <Value>".
type EngineOption struct {
	Name  string
	Value string
}

// Observer receives session events; metrics.Collector implements it.
type Observer interface {
	EngineStateChanged(state string)
	EngineRequestFinished(kind string, d time.Duration, err error)
	EngineCrashed()
	// RecordEngineRestart is called by the Supervisor when it replaces a
	// session.
	RecordEngineRestart()
}

type nopObserver struct{}

func (nopObserver) EngineStateChanged(string)                           {}
func (nopObserver) EngineRequestFinished(string, time.Duration, error) {}
func (nopObserver) EngineCrashed()                                      {}
func (nopObserver) RecordEngineRestart()                                {}

// Options configures a Session.
type Options struct {
	// Depth is used for "go depth" when MoveTime is zero.
	Depth    int
	MoveTime time.Duration
	// EngineOptions are sent during the handshake.
	EngineOptions []EngineOption
	Logger        logging.ContextLogger
	Observer      Observer
}

// OptionsFromConfig maps engine configuration to session options.
func OptionsFromConfig(cfg *config.EngineConfig, logger logging.ContextLogger) Options {
	opts := Options{
		Depth:    cfg.Depth,
		MoveTime: time.Duration(cfg.MoveTimeMs) * time.Millisecond,
		Logger:   logger,
		EngineOptions: []EngineOption{
			{Name: "Threads", Value: strconv.Itoa(cfg.Threads)},
			{Name: "Hash", Value: strconv.Itoa(cfg.HashMB)},
		},
	}
	if cfg.SyzygyPath != "" {
		opts.EngineOptions = append(opts.EngineOptions, EngineOption{Name: "SyzygyPath", Value: cfg.SyzygyPath})
	}
	return opts
}

type result struct {
	move *Move
	info *InfoUpdate
	err  error
}

type request struct {
	id      uint64
	kind    Kind
	started time.Time
	info    *InfoUpdate
	done    chan result
}

// Session drives one engine process. Requests are served strictly one at
// a time in submission order, since engine output carries no request id.
// A Session is safe for concurrent use; it is never restarted once
// terminated.
type Session struct {
	spawner  Spawner
	opts     Options
	logger   logging.ContextLogger
	observer Observer

	mu       sync.Mutex
	state    State
	proc     Process
	queue    CommandQueue
	inflight *request
	nextID   uint64
	uciOK    bool
	readyOK  bool
	identity map[string]string
}

// NewSession returns an idle session. The engine is spawned on first use.
func NewSession(spawner Spawner, opts Options) *Session {
	if opts.Depth <= 0 && opts.MoveTime <= 0 {
		opts.Depth = 18
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Session{
		spawner:  spawner,
		opts:     opts,
		logger:   opts.Logger,
		observer: opts.Observer,
		identity: make(map[string]string),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EngineName is the engine's "id name", empty until the handshake.
func (s *Session) EngineName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity["name"]
}

// Pending is the number of requests queued or in flight.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.queue.Requests()
	if s.inflight != nil {
		n++
	}
	return n
}

// Start spawns the engine if it is not running yet. It does not wait for
// the handshake.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateUninitialized:
		return s.spawnLocked(ctx)
	case StateShuttingDown, StateTerminated:
		return ErrSessionClosed
	default:
		return nil
	}
}

// RequestBestMove searches fen and returns the engine's move, or nil when
// the side to move has none.
func (s *Session) RequestBestMove(ctx context.Context, fen string) (*Move, error) {
	res, err := s.search(ctx, KindBestMove, fen)
	if err != nil {
		return nil, err
	}
	return res.move, nil
}

// RequestEvaluation searches fen and returns the last scored info line with
// the engine's move. Without a scored line the result has no score rather
// than a zero score.
func (s *Session) RequestEvaluation(ctx context.Context, fen string) (*Evaluation, error) {
	res, err := s.search(ctx, KindEvaluation, fen)
	if err != nil {
		return nil, err
	}
	eval := &Evaluation{BestMove: res.move, PV: []Move{}}
	if res.info != nil {
		eval.Centipawns = res.info.Centipawns
		eval.MateIn = res.info.MateIn
		eval.Depth = res.info.Depth
		if res.info.PV != nil {
			eval.PV = res.info.PV
		}
	}
	return eval, nil
}

// NewGame tells the engine the next position is unrelated to the last and
// waits until it has reset.
func (s *Session) NewGame(ctx context.Context) error {
	_, err := s.submit(ctx, KindSync, "ucinewgame", "isready")
	return err
}

// Ping round-trips an isready through the queue.
func (s *Session) Ping(ctx context.Context) error {
	_, err := s.submit(ctx, KindSync, "isready")
	return err
}

func (s *Session) search(ctx context.Context, kind Kind, fen string) (result, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || strings.ContainsAny(fen, "\r\n") {
		return result{}, fmt.Errorf("%w: %q", ErrInvalidPosition, fen)
	}
	return s.submit(ctx, kind, "position fen "+fen, s.goCommand())
}

func (s *Session) goCommand() string {
	if s.opts.MoveTime > 0 {
		return "go movetime " + strconv.FormatInt(s.opts.MoveTime.Milliseconds(), 10)
	}
	return "go depth " + strconv.Itoa(s.opts.Depth)
}

// submit queues lines as one request; the last line is the one whose
// terminal response resolves it. ctx bounds only this caller's wait: an
// abandoned request still runs in order and its result is dropped.
func (s *Session) submit(ctx context.Context, kind Kind, lines ...string) (result, error) {
	s.mu.Lock()
	switch s.state {
	case StateShuttingDown, StateTerminated:
		s.mu.Unlock()
		return result{}, ErrSessionClosed
	case StateUninitialized:
		if err := s.spawnLocked(ctx); err != nil {
			s.mu.Unlock()
			return result{}, err
		}
	}

	s.nextID++
	req := &request{
		id:   s.nextID,
		kind: kind,
		done: make(chan result, 1),
	}
	for i, line := range lines {
		if i == len(lines)-1 {
			s.queue.push(line, req)
		} else {
			s.queue.push(line, nil)
		}
	}
	s.drainLocked()
	s.mu.Unlock()

	select {
	case res := <-req.done:
		return res, res.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

func (s *Session) spawnLocked(ctx context.Context) error {
	proc, err := s.spawner.Spawn(ctx)
	if err != nil {
		s.logger.Error("Failed to spawn engine", "error", err)
		return fmt.Errorf("%w: %v", ErrProcessSpawnFailed, err)
	}

	s.proc = proc
	s.uciOK, s.readyOK = false, false
	s.setStateLocked(StateInitializing)
	go s.readLoop(proc)

	handshake := []string{"uci"}
	for _, opt := range s.opts.EngineOptions {
		handshake = append(handshake, fmt.Sprintf("setoption name %s value %s", opt.Name, opt.Value))
	}
	handshake = append(handshake, "isready")
	for _, line := range handshake {
		if err := proc.Send(line); err != nil {
			// The reader will see the exit and fail the session.
			s.logger.Error("Failed to send handshake", "line", line, "error", err)
			break
		}
	}
	return nil
}

// drainLocked writes queued lines while the engine is ready and idle. A
// request line makes the session busy and stops the drain.
func (s *Session) drainLocked() {
	for s.state == StateReady && s.inflight == nil {
		cmd, ok := s.queue.next()
		if !ok {
			return
		}
		if err := s.proc.Send(cmd.line); err != nil {
			s.logger.Error("Failed to write to engine", "line", cmd.line, "error", err)
			if cmd.req != nil {
				cmd.req.done <- result{err: fmt.Errorf("%w: %v", ErrEngineCrashed, err)}
			}
			// The process is gone or going; readLoop finishes the cleanup.
			return
		}
		s.logger.Debug("Sent engine command", "line", cmd.line)
		if cmd.req != nil {
			cmd.req.started = time.Now()
			s.inflight = cmd.req
			s.setStateLocked(StateBusy)
		}
	}
}

func (s *Session) readLoop(proc Process) {
	for line := range proc.Lines() {
		s.handleLine(proc, line)
	}
	s.handleExit(proc)
}

func (s *Session) handleLine(proc Process, line string) {
	msg := ParseLine(line)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc != proc {
		return
	}

	switch msg.Kind {
	case MessageIdentity:
		s.identity[msg.Identity.Key] = msg.Identity.Value

	case MessageCapabilityAck:
		s.uciOK = true
		s.checkReadyLocked()

	case MessageReadyForCommands:
		if s.state == StateInitializing {
			s.readyOK = true
			s.checkReadyLocked()
			return
		}
		if s.inflight != nil && s.inflight.kind == KindSync {
			s.completeLocked(result{})
		}

	case MessageInfo:
		req := s.inflight
		if req == nil || req.kind == KindSync {
			return
		}
		if msg.Info.HasScore() && msg.Info.MultiPV <= 1 {
			req.info = msg.Info
		}

	case MessageBestMove, MessageNoMove:
		req := s.inflight
		if req == nil || req.kind == KindSync {
			s.logger.Warn("Unexpected terminal message", "line", line)
			return
		}
		s.completeLocked(result{move: msg.Move, info: req.info})
	}
}

func (s *Session) checkReadyLocked() {
	if s.state != StateInitializing || !s.uciOK || !s.readyOK {
		return
	}
	s.setStateLocked(StateReady)
	s.logger.Info("Engine ready", "name", s.identity["name"])
	s.drainLocked()
}

// completeLocked resolves the in-flight request and resumes the queue.
func (s *Session) completeLocked(res result) {
	req := s.inflight
	s.inflight = nil
	s.setStateLocked(StateReady)
	req.done <- res
	s.observer.EngineRequestFinished(req.kind.String(), time.Since(req.started), res.err)
	s.drainLocked()
}

func (s *Session) handleExit(proc Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc != proc {
		return
	}
	if s.state == StateShuttingDown || s.state == StateTerminated {
		return
	}

	s.logger.Error("Engine exited unexpectedly", "state", s.state.String(), "pending", s.queue.Requests())
	s.observer.EngineCrashed()
	s.failAllLocked(ErrEngineCrashed)
	s.proc = nil
	s.setStateLocked(StateTerminated)
}

// failAllLocked rejects the in-flight request and every queued one, and
// drops the queued lines.
func (s *Session) failAllLocked(err error) {
	if req := s.inflight; req != nil {
		s.inflight = nil
		req.done <- result{err: err}
		s.observer.EngineRequestFinished(req.kind.String(), time.Since(req.started), err)
	}
	for _, req := range s.queue.discard() {
		req.done <- result{err: err}
	}
}

// Terminate stops the engine. Pending requests fail with ErrCancelled and
// later ones with ErrSessionClosed. ctx bounds the wait for the process to
// exit; after that it is killed.
func (s *Session) Terminate(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateShuttingDown, StateTerminated:
		s.mu.Unlock()
		return nil
	case StateUninitialized:
		s.setStateLocked(StateShuttingDown)
		s.setStateLocked(StateTerminated)
		s.mu.Unlock()
		return nil
	}

	busy := s.inflight != nil
	s.setStateLocked(StateShuttingDown)
	s.failAllLocked(ErrCancelled)
	proc := s.proc
	if busy {
		_ = proc.Send("stop")
	}
	_ = proc.Send("quit")
	s.mu.Unlock()

	err := proc.Close(ctx)

	s.mu.Lock()
	s.proc = nil
	s.setStateLocked(StateTerminated)
	s.mu.Unlock()

	s.logger.Info("Engine session terminated")
	if err != nil {
		return fmt.Errorf("failed to stop engine: %w", err)
	}
	return nil
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.observer.EngineStateChanged(state.String())
}
