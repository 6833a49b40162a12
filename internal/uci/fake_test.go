package uci

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeProcess is a scripted engine. Replies produced by respond are queued
// asynchronously, as a real engine's output would be.
type fakeProcess struct {
	mu       sync.Mutex
	sent     []string
	out      chan string
	exited   bool
	position string
	respond  func(p *fakeProcess, line string) []string
}

func newFakeProcess(respond func(p *fakeProcess, line string) []string) *fakeProcess {
	return &fakeProcess{out: make(chan string, 256), respond: respond}
}

func (p *fakeProcess) Send(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return errors.New("write |1: broken pipe")
	}
	p.sent = append(p.sent, line)
	if fen, ok := strings.CutPrefix(line, "position fen "); ok {
		p.position = fen
	}
	if p.respond != nil {
		for _, reply := range p.respond(p, line) {
			p.out <- reply
		}
	}
	return nil
}

func (p *fakeProcess) Lines() <-chan string { return p.out }

func (p *fakeProcess) Close(context.Context) error {
	p.Exit()
	return nil
}

// Emit writes a line as if the engine printed it.
func (p *fakeProcess) Emit(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return
	}
	for _, line := range lines {
		p.out <- line
	}
}

// Exit simulates the process ending.
func (p *fakeProcess) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exited {
		p.exited = true
		close(p.out)
	}
}

func (p *fakeProcess) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

func (p *fakeProcess) sentCount(prefix string) int {
	n := 0
	for _, line := range p.Sent() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// handshake answers uci and isready like a real engine.
func handshake(p *fakeProcess, line string) []string {
	switch line {
	case "uci":
		return []string{"id name Fakefish 1", "id author Tests", "uciok"}
	case "isready":
		return []string{"readyok"}
	}
	return nil
}

// searchReplies answers every go with the given lines.
func searchReplies(replies ...string) func(*fakeProcess, string) []string {
	return func(p *fakeProcess, line string) []string {
		if strings.HasPrefix(line, "go ") {
			return replies
		}
		return handshake(p, line)
	}
}

// manualSearch answers the handshake but leaves searches to the test.
func manualSearch(p *fakeProcess, line string) []string {
	return handshake(p, line)
}

type fakeSpawner struct {
	mu       sync.Mutex
	respond  func(*fakeProcess, string) []string
	failures int
	attempts int
	procs    []*fakeProcess
}

func (s *fakeSpawner) Spawn(ctx context.Context) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("exec: \"stockfish\": executable file not found in $PATH")
	}
	p := newFakeProcess(s.respond)
	s.procs = append(s.procs, p)
	return p, nil
}

func (s *fakeSpawner) last() *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.procs) == 0 {
		return nil
	}
	return s.procs[len(s.procs)-1]
}

func (s *fakeSpawner) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *fakeSpawner) spawned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

type recordingObserver struct {
	mu       sync.Mutex
	states   []string
	finished map[string]int
	crashes  int
	restarts int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{finished: map[string]int{}}
}

func (o *recordingObserver) EngineStateChanged(state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func (o *recordingObserver) EngineRequestFinished(kind string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished[kind]++
}

func (o *recordingObserver) EngineCrashed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.crashes++
}

func (o *recordingObserver) RecordEngineRestart() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.restarts++
}

func (o *recordingObserver) Restarts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.restarts
}

func (o *recordingObserver) Crashes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.crashes
}

func (o *recordingObserver) States() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.states...)
}

type outcome struct {
	move *Move
	err  error
}

// goBestMove runs RequestBestMove in the background.
func goBestMove(ctx context.Context, s *Session, fen string) <-chan outcome {
	ch := make(chan outcome, 1)
	go func() {
		m, err := s.RequestBestMove(ctx, fen)
		ch <- outcome{move: m, err: err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("request did not resolve")
		return outcome{}
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}
