package uci

import (
	"context"
)

// Engine is what the MCP layer needs from a chess engine. It allows
// swapping in MockEngine in tests.
type Engine interface {
	// RequestBestMove returns the engine's move for fen, nil if there is none.
	RequestBestMove(ctx context.Context, fen string) (*Move, error)

	// RequestEvaluation returns the engine's score and line for fen.
	RequestEvaluation(ctx context.Context, fen string) (*Evaluation, error)

	// NewGame resets engine state between unrelated positions.
	NewGame(ctx context.Context) error

	// Ping checks the engine is responsive.
	Ping(ctx context.Context) error

	// Restart replaces the running engine with a fresh process.
	Restart(ctx context.Context) error

	// Stop terminates the engine; the next request starts a new one.
	Stop(ctx context.Context) error

	Status() Status
}

// Status is a point-in-time view of the engine.
type Status struct {
	State    string `json:"state"`
	Engine   string `json:"engine,omitempty"`
	Pending  int    `json:"pending"`
	Restarts int    `json:"restarts"`
}

var _ Engine = (*Supervisor)(nil)
