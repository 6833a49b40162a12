package uci

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/dmmcquay/endgame-mcp/internal/logging"
)

// Process is a running engine. Lines delivers stdout one line at a time
// and is closed when the process exits.
type Process interface {
	Send(line string) error
	Lines() <-chan string
	// Close asks the process to exit and waits for it, killing it if ctx
	// ends first.
	Close(ctx context.Context) error
}

// Spawner starts engine processes.
type Spawner interface {
	Spawn(ctx context.Context) (Process, error)
}

// SpawnFunc adapts a function to Spawner.
type SpawnFunc func(ctx context.Context) (Process, error)

func (f SpawnFunc) Spawn(ctx context.Context) (Process, error) { return f(ctx) }

// ExecSpawner runs a UCI binary as a child process.
type ExecSpawner struct {
	BinaryPath string
	Args       []string
	Logger     logging.ContextLogger
}

var _ Spawner = (*ExecSpawner)(nil)

// Spawn starts the binary. The process outlives ctx; it ends only through
// Close or on its own.
func (s *ExecSpawner) Spawn(ctx context.Context) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	cmd := exec.Command(s.BinaryPath, s.Args...) // #nosec G204 -- BinaryPath is validated configuration

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	cmd.Stderr = &stderrLogger{logger: logger}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", s.BinaryPath, err)
	}

	p := &execProcess{
		cmd:   cmd,
		stdin: stdin,
		lines:   make(chan string, 64),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go p.read(stdout)

	logger.Info("Engine process started", "binary", s.BinaryPath, "pid", cmd.Process.Pid)
	return p, nil
}

type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	writeMu   sync.Mutex
	lines     chan string
	done      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
	waitErr   error
}

func (p *execProcess) Send(line string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return fmt.Errorf("failed to write %q: %w", line, err)
	}
	return nil
}

func (p *execProcess) Lines() <-chan string { return p.lines }

// read forwards stdout until EOF, then reaps the process. Once Close is
// called, unread output is discarded so the process can always be reaped.
func (p *execProcess) read(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case p.lines <- scanner.Text():
		case <-p.closing:
		}
	}
	// A scan error leaves output unread; keep draining so the engine
	// never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)
	p.waitErr = p.cmd.Wait()
	close(p.lines)
	close(p.done)
}

func (p *execProcess) Close(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.closing) })

	p.writeMu.Lock()
	_ = p.stdin.Close()
	p.writeMu.Unlock()

	select {
	case <-p.done:
	case <-ctx.Done():
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.done
	}

	var exitErr *exec.ExitError
	if p.waitErr != nil && !errors.As(p.waitErr, &exitErr) {
		return p.waitErr
	}
	return nil
}

// stderrLogger turns engine stderr into debug log lines.
type stderrLogger struct {
	logger logging.ContextLogger
	buf    bytes.Buffer
}

func (w *stderrLogger) Write(b []byte) (int, error) {
	w.buf.Write(b)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(b), nil
		}
		if line = line[:len(line)-1]; line != "" {
			w.logger.Debug("Engine stderr", "line", line)
		}
	}
}
