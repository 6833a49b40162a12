//go:build integration

package uci

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/endgame-mcp/internal/retry"
)

func stockfishPath(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("stockfish")
	if err != nil {
		t.Skip("stockfish not installed")
	}
	return path
}

func TestStockfishSession(t *testing.T) {
	spawner := &ExecSpawner{BinaryPath: stockfishPath(t)}
	sup := NewSupervisor(spawner, Options{Depth: 12}, retry.DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer func() { _ = sup.Close(ctx) }()

	move, err := sup.RequestBestMove(ctx, "8/8/8/8/8/2k5/8/K1Q5 w - - 0 1")
	require.NoError(t, err)
	require.NotNil(t, move)

	eval, err := sup.RequestEvaluation(ctx, "8/8/8/8/8/2k5/8/K1Q5 w - - 0 1")
	require.NoError(t, err)
	assert.True(t, eval.HasScore())

	// Checkmated side has no move.
	move, err = sup.RequestBestMove(ctx, "7k/6Q1/6K1/8/8/8/8/8 b - - 0 1")
	require.NoError(t, err)
	assert.Nil(t, move)

	assert.Contains(t, sup.Status().Engine, "Stockfish")
}

func TestDetectStockfish(t *testing.T) {
	stockfishPath(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	found, err := DetectStockfish(ctx)
	require.NoError(t, err)
	assert.Contains(t, found.Name, "Stockfish")
}
