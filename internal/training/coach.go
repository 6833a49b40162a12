// Package training turns a played endgame move into feedback: how the
// tablebase verdict changed and which moves would have done better.
package training

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/corentings/chess/v2"

	"github.com/dmmcquay/endgame-mcp/internal/logging"
	"github.com/dmmcquay/endgame-mcp/internal/quality"
	"github.com/dmmcquay/endgame-mcp/internal/tablebase"
	"github.com/dmmcquay/endgame-mcp/internal/wdl"
)

var (
	ErrInvalidFEN  = errors.New("invalid FEN")
	ErrIllegalMove = errors.New("illegal move")
	ErrGameOver    = errors.New("position has no legal moves")
)

// maxAlternatives caps the better moves listed in feedback.
const maxAlternatives = 3

// ClassificationObserver counts classified moves; metrics.Collector
// implements it.
type ClassificationObserver interface {
	RecordClassification(category string)
}

// Coach produces move feedback from tablebase probes.
type Coach struct {
	prober   tablebase.Prober
	logger   logging.ContextLogger
	observer ClassificationObserver
}

// NewCoach creates a coach. observer may be nil.
func NewCoach(prober tablebase.Prober, logger logging.ContextLogger, observer ClassificationObserver) *Coach {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coach{prober: prober, logger: logger, observer: observer}
}

// Feedback is the verdict on one played move.
type Feedback struct {
	FEN    string         `json:"fen"`
	UCI    string         `json:"uci"`
	SAN    string         `json:"san"`
	Side   string         `json:"side"`
	Result quality.Result `json:"result"`
	// Played is the tablebase entry for the move, nil without data.
	Played *tablebase.Move `json:"played,omitempty"`
	// Better lists moves in a better outcome bucket, best first.
	Better []tablebase.Move `json:"better"`
	Best   *tablebase.Move  `json:"best,omitempty"`
	Text   string           `json:"text"`
}

// Feedback checks move (UCI or SAN) is legal in fen and classifies it.
// A position missing from the tablebase yields an unknown classification,
// not an error.
func (c *Coach) Feedback(ctx context.Context, fen, move string) (*Feedback, error) {
	game, err := NewGame(fen)
	if err != nil {
		return nil, err
	}
	pos := game.Position()
	if game.Outcome() != chess.NoOutcome {
		return nil, ErrGameOver
	}

	mv, err := decodeMove(pos, move)
	if err != nil {
		return nil, err
	}
	if err := game.Move(mv, nil); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, move)
	}

	side := SideToMove(pos)
	fb := &Feedback{
		FEN:    fen,
		UCI:    strings.ToLower(chess.UCINotation{}.Encode(pos, mv)),
		SAN:    chess.AlgebraicNotation{}.Encode(pos, mv),
		Side:   side.String(),
		Better: []tablebase.Move{},
	}

	logger := c.logger.WithContext(ctx).WithField("fen", fen)

	probed, err := c.prober.Probe(ctx, fen)
	switch {
	case errors.Is(err, tablebase.ErrPositionNotFound):
		logger.Debug("Position not in tablebase")
		fb.Result = quality.ClassifyMove(wdl.Unknown(), wdl.Unknown(), side)
	case err != nil:
		return nil, fmt.Errorf("tablebase probe failed: %w", err)
	default:
		c.fill(fb, pos, probed, side)
	}

	if c.observer != nil {
		c.observer.RecordClassification(string(fb.Result.Category))
	}
	fb.Text = render(fb)
	logger.Debug("Move classified", "move", fb.UCI, "category", string(fb.Result.Category))
	return fb, nil
}

func (c *Coach) fill(fb *Feedback, pos *chess.Position, probed *tablebase.Position, side wdl.Side) {
	moves := make([]tablebase.Move, len(probed.Moves))
	copy(moves, probed.Moves)
	for i := range moves {
		if moves[i].SAN == "" {
			moves[i].SAN = SAN(pos, moves[i].UCI)
		}
	}

	classified := tablebase.ClassifyMovesByDTZ(moves)
	if best, ok := classified.Best(); ok {
		fb.Best = &best
	}

	played, ok := findMove(moves, fb.UCI)
	if !ok {
		fb.Result = quality.ClassifyMove(probed.WDL, wdl.Unknown(), side)
		return
	}
	fb.Played = &played
	fb.Result = quality.ClassifyMove(probed.WDL, played.WDL, side)

	for _, bucket := range betterBuckets(played.Bucket()) {
		for _, m := range classified.Of(bucket) {
			if len(fb.Better) == maxAlternatives {
				return
			}
			fb.Better = append(fb.Better, m)
		}
	}
}

// betterBuckets lists the buckets that beat played, best first.
func betterBuckets(played tablebase.Category) []tablebase.Category {
	switch played {
	case tablebase.CategoryDraw:
		return []tablebase.Category{tablebase.CategoryWin}
	case tablebase.CategoryLoss:
		return []tablebase.Category{tablebase.CategoryWin, tablebase.CategoryDraw}
	default:
		return nil
	}
}

func findMove(moves []tablebase.Move, uci string) (tablebase.Move, bool) {
	for _, m := range moves {
		if strings.EqualFold(m.UCI, uci) {
			return m, true
		}
	}
	return tablebase.Move{}, false
}

func render(fb *Feedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s: %s", fb.SAN, fb.Result.Symbol, fb.Result.Summary())
	if fb.Played != nil && fb.Played.DTZ != nil {
		fmt.Fprintf(&b, ", DTZ %d", *fb.Played.DTZ)
	}
	if len(fb.Better) > 0 {
		names := make([]string, len(fb.Better))
		for i, m := range fb.Better {
			names[i] = describe(m)
		}
		fmt.Fprintf(&b, "\nBetter: %s", strings.Join(names, ", "))
	} else if fb.Result.Category.IsError() && fb.Best != nil && fb.Best.UCI != fb.UCI {
		fmt.Fprintf(&b, "\nBest: %s", describe(*fb.Best))
	}
	return b.String()
}

func describe(m tablebase.Move) string {
	name := m.SAN
	if name == "" {
		name = m.UCI
	}
	if m.DTZ == nil {
		return fmt.Sprintf("%s (%s)", name, m.Bucket())
	}
	return fmt.Sprintf("%s (%s, DTZ %d)", name, m.Bucket(), *m.DTZ)
}
