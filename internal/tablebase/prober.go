package tablebase

import (
	"context"
	"errors"
	"strings"
)

// ErrPositionNotFound means the source has no data for the position. It is
// not a draw.
var ErrPositionNotFound = errors.New("position not in tablebase")

// Prober looks up a position's verdict and per-move results.
type Prober interface {
	Probe(ctx context.Context, fen string) (*Position, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, fen string) (*Position, error)

func (f ProberFunc) Probe(ctx context.Context, fen string) (*Position, error) {
	return f(ctx, fen)
}

// NormalizeFEN keeps the four fields that identify a tablebase position
// (placement, side to move, castling, en passant) and drops the move
// counters.
func NormalizeFEN(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}
