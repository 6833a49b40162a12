// Package quality turns a WDL transition into training feedback.
package quality

import (
	"fmt"

	"github.com/dmmcquay/endgame-mcp/internal/wdl"
)

// Category names the quality of a move.
type Category string

const (
	CategoryCatastrophic Category = "catastrophic"
	CategoryMistake      Category = "mistake"
	CategoryBrilliant    Category = "brilliant"
	CategoryExcellent    Category = "excellent"
	CategoryInaccurate   Category = "inaccurate"
	CategoryWeakDefense  Category = "weak defense"
	CategoryBestDefense  Category = "best defense"
	CategoryNeutral      Category = "neutral"
	CategoryUnknown      Category = "unknown"
)

// Severity ranks categories; lower is worse. Unknown sorts last.
func (c Category) Severity() int {
	switch c {
	case CategoryCatastrophic:
		return 1
	case CategoryMistake:
		return 2
	case CategoryInaccurate:
		return 3
	case CategoryWeakDefense:
		return 4
	case CategoryBrilliant:
		return 5
	case CategoryExcellent:
		return 6
	case CategoryBestDefense:
		return 7
	case CategoryNeutral:
		return 8
	default:
		return 9
	}
}

// IsError reports whether the move changed the outcome for the worse or
// gave away part of a win or defence.
func (c Category) IsError() bool {
	return c.Severity() <= CategoryWeakDefense.Severity()
}

// Result is the classification of one move.
type Result struct {
	Category   Category  `json:"category"`
	Symbol     string    `json:"symbol"`
	Transition string    `json:"transition"`
	Before     wdl.Value `json:"before"`
	After      wdl.Value `json:"after"`
	Side       string    `json:"side,omitempty"`
}

// Summary is a short human readable line.
func (r Result) Summary() string {
	if r.Category == CategoryUnknown {
		return "no tablebase data for this move"
	}
	if r.Side == "" {
		return fmt.Sprintf("%s %s (%s)", r.Symbol, r.Category, r.Transition)
	}
	return fmt.Sprintf("%s %s by %s (%s)", r.Symbol, r.Category, r.Side, r.Transition)
}

// ClassifyMove classifies a move from raw tablebase readings. before is the
// verdict at the mover's turn; afterFromOpponent is the verdict of the
// resulting position, which has the opponent to move.
func ClassifyMove(before, afterFromOpponent wdl.Value, mover wdl.Side) Result {
	beforeMover, afterMover := wdl.ToMoverPerspective(before, afterFromOpponent)
	res := Classify(beforeMover, afterMover)
	res.Side = mover.String()
	return res
}

// ClassifyMoveRaw validates integer inputs before classifying.
func ClassifyMoveRaw(before, afterFromOpponent int, mover wdl.Side) (Result, error) {
	b, err := wdl.FromInt(before)
	if err != nil {
		return Result{}, fmt.Errorf("before: %w", err)
	}
	a, err := wdl.FromInt(afterFromOpponent)
	if err != nil {
		return Result{}, fmt.Errorf("after: %w", err)
	}
	return ClassifyMove(b, a, mover), nil
}

// Classify maps a transition, both values from the mover's point of view.
func Classify(beforeMover, afterMover wdl.Value) Result {
	res := Result{
		Category: CategoryUnknown,
		Before:   beforeMover,
		After:    afterMover,
	}

	before, okBefore := beforeMover.Get()
	after, okAfter := afterMover.Get()
	if !okBefore || !okAfter {
		res.Transition = "unknown"
		return res
	}

	from, to := before.Outcome(), after.Outcome()
	res.Transition = fmt.Sprintf("%s→%s", from, to)

	switch {
	case from == wdl.OutcomeWin && to != wdl.OutcomeWin:
		res.Category, res.Symbol = CategoryCatastrophic, "??"
	case from == wdl.OutcomeDraw && to == wdl.OutcomeLoss:
		res.Category, res.Symbol = CategoryMistake, "?"
	case from == wdl.OutcomeLoss && to == wdl.OutcomeWin:
		res.Category, res.Symbol = CategoryBrilliant, "!!"
	case from != to:
		// loss→draw and draw→win
		res.Category, res.Symbol = CategoryExcellent, "!"
	case from == wdl.OutcomeWin && after < before:
		res.Category, res.Symbol = CategoryInaccurate, "?!"
		res.Transition = fmt.Sprintf("%s→%s", before, after)
	case from == wdl.OutcomeWin:
		res.Category, res.Symbol = CategoryExcellent, "✓"
	case from == wdl.OutcomeLoss && after < before:
		res.Category, res.Symbol = CategoryWeakDefense, "?!"
		res.Transition = fmt.Sprintf("%s→%s", before, after)
	case from == wdl.OutcomeLoss:
		res.Category, res.Symbol = CategoryBestDefense, "□"
	default:
		res.Category, res.Symbol = CategoryNeutral, "="
	}
	return res
}
