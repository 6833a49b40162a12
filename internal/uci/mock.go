package uci

import (
	"context"
	"sync"
)

// MockEngine is an Engine for tests. Responses are fixed per call type.
type MockEngine struct {
	mu         sync.Mutex
	running    bool
	bestMove   *Move
	bestErr    error
	evaluation *Evaluation
	evalErr    error
	pingErr    error
	restartErr error
	name       string

	pingCalls    int
	restartCalls int
	stopCalls    int
	newGameCalls int
	positions    []string
}

var _ Engine = (*MockEngine)(nil)

// NewMockEngine returns a running mock named "Mockfish".
func NewMockEngine() *MockEngine {
	return &MockEngine{running: true, name: "Mockfish"}
}

func (m *MockEngine) SetBestMove(move *Move, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bestMove, m.bestErr = move, err
}

func (m *MockEngine) SetEvaluation(eval *Evaluation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluation, m.evalErr = eval, err
}

func (m *MockEngine) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

func (m *MockEngine) SetRestartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restartErr = err
}

// Positions returns every FEN passed to a search, in order.
func (m *MockEngine) Positions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.positions...)
}

func (m *MockEngine) PingCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingCalls
}

func (m *MockEngine) RestartCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restartCalls
}

func (m *MockEngine) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

func (m *MockEngine) NewGameCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newGameCalls
}

func (m *MockEngine) RequestBestMove(ctx context.Context, fen string) (*Move, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.running = true
	m.positions = append(m.positions, fen)
	return m.bestMove, m.bestErr
}

func (m *MockEngine) RequestEvaluation(ctx context.Context, fen string) (*Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.running = true
	m.positions = append(m.positions, fen)
	return m.evaluation, m.evalErr
}

func (m *MockEngine) NewGame(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newGameCalls++
	return ctx.Err()
}

func (m *MockEngine) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.pingErr
}

func (m *MockEngine) Restart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restartCalls++
	if m.restartErr != nil {
		return m.restartErr
	}
	m.running = true
	return nil
}

func (m *MockEngine) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.running = false
	return nil
}

func (m *MockEngine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return Status{State: StateUninitialized.String(), Restarts: m.restartCalls}
	}
	return Status{State: StateReady.String(), Engine: m.name, Restarts: m.restartCalls}
}
