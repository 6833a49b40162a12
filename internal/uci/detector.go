package uci

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// DetectedEngine describes a UCI binary found on this machine.
type DetectedEngine struct {
	BinaryPath string
	Name       string
	Author     string
}

// DetectStockfish looks for a Stockfish binary and asks it for its
// identity. The binary path is returned even when identification fails.
func DetectStockfish(ctx context.Context) (*DetectedEngine, error) {
	path, err := findStockfishBinary()
	if err != nil {
		return nil, err
	}

	found := &DetectedEngine{BinaryPath: path}
	name, author, err := Identify(ctx, &ExecSpawner{BinaryPath: path})
	if err != nil {
		return found, fmt.Errorf("found %s but could not identify it: %w", path, err)
	}
	found.Name, found.Author = name, author
	return found, nil
}

// Identify runs the uci handshake and returns the engine's id lines.
func Identify(ctx context.Context, spawner Spawner) (name, author string, err error) {
	proc, err := spawner.Spawn(ctx)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrProcessSpawnFailed, err)
	}
	defer func() {
		_ = proc.Send("quit")
		_ = proc.Close(ctx)
	}()

	if err := proc.Send("uci"); err != nil {
		return "", "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case line, ok := <-proc.Lines():
			if !ok {
				return "", "", ErrEngineCrashed
			}
			msg := ParseLine(line)
			switch msg.Kind {
			case MessageIdentity:
				switch msg.Identity.Key {
				case "name":
					name = msg.Identity.Value
				case "author":
					author = msg.Identity.Value
				}
			case MessageCapabilityAck:
				return name, author, nil
			}
		}
	}
}

func findStockfishBinary() (string, error) {
	searchPaths := []string{
		os.Getenv("STOCKFISH_PATH"),
		"stockfish",
		"/usr/games/stockfish",
		"/usr/local/bin/stockfish",
		"/usr/bin/stockfish",
		"/opt/homebrew/bin/stockfish",
		"C:\\Program Files\\Stockfish\\stockfish.exe",
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, "bin", "stockfish"),
			filepath.Join(home, ".local", "bin", "stockfish"),
		)
	}

	for _, path := range searchPaths {
		if path == "" {
			continue
		}
		if !filepath.IsAbs(path) {
			found, err := exec.LookPath(path)
			if err != nil {
				continue
			}
			path = found
		}
		if isExecutable(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("stockfish not found in PATH or common locations; set STOCKFISH_PATH or engine.binaryPath")
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return strings.HasSuffix(strings.ToLower(path), ".exe")
	}
	return info.Mode()&0o111 != 0
}

// InstallationInstructions explains how to get an engine for this OS.
func InstallationInstructions() string {
	var b strings.Builder
	b.WriteString("Stockfish Installation\n")
	b.WriteString("======================\n\n")

	switch runtime.GOOS {
	case "darwin":
		b.WriteString("macOS:\n  brew install stockfish\n\n")
	case "linux":
		b.WriteString("Linux:\n  Ubuntu/Debian: sudo apt install stockfish\n\n")
	case "windows":
		b.WriteString("Windows:\n  Download from https://stockfishchess.org/download/\n\n")
	}

	b.WriteString("Then either put it on PATH or set:\n")
	b.WriteString("  export STOCKFISH_PATH=/path/to/stockfish\n")
	b.WriteString("Optional Syzygy tablebases:\n")
	b.WriteString("  export ENDGAME_MCP_SYZYGY_PATH=/path/to/syzygy\n")
	return b.String()
}
