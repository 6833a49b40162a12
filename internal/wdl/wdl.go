// Package wdl models tablebase win/draw/loss verdicts.
//
// A WDL always annotates a position from the point of view of the side to
// move at that position. Values attached to the position after a move are
// therefore from the opponent's point of view and must go through
// ToMoverPerspective (or AfterMoveForMover) before being compared with the
// value measured before the move. Those two functions are the only places in
// the module that negate a WDL.
package wdl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// WDL is an exact tablebase verdict in [-2, 2].
type WDL int8

const (
	Loss        WDL = -2
	BlessedLoss WDL = -1 // lost, but saved by the 50-move rule
	Draw        WDL = 0
	CursedWin   WDL = 1 // won, but spoiled by the 50-move rule
	Win         WDL = 2
)

// ErrInvalidWDL is returned for values outside [-2, 2].
var ErrInvalidWDL = errors.New("invalid wdl")

// Parse validates a raw integer.
func Parse(v int) (WDL, error) {
	if v < int(Loss) || v > int(Win) {
		return 0, fmt.Errorf("%w: %d not in [-2, 2]", ErrInvalidWDL, v)
	}
	return WDL(v), nil
}

// Outcome is the coarse bucket a WDL falls into.
type Outcome int

const (
	OutcomeLoss Outcome = iota - 1
	OutcomeDraw
	OutcomeWin
)

// Outcome buckets the verdict: >= 1 is a win, 0 a draw, <= -1 a loss.
func (w WDL) Outcome() Outcome {
	switch {
	case w >= CursedWin:
		return OutcomeWin
	case w <= BlessedLoss:
		return OutcomeLoss
	default:
		return OutcomeDraw
	}
}

func (w WDL) String() string {
	switch w {
	case Loss:
		return "loss"
	case BlessedLoss:
		return "blessed loss"
	case Draw:
		return "draw"
	case CursedWin:
		return "cursed win"
	case Win:
		return "win"
	default:
		return fmt.Sprintf("wdl(%d)", int8(w))
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLoss:
		return "loss"
	default:
		return "draw"
	}
}

// Value is an optional WDL. The zero Value is unknown, so a missing tablebase
// reading can never be mistaken for a draw.
type Value struct {
	wdl   WDL
	known bool
}

// Known wraps a verdict.
func Known(w WDL) Value { return Value{wdl: w, known: true} }

// Unknown is the absent reading.
func Unknown() Value { return Value{} }

// FromInt validates and wraps a raw integer.
func FromInt(v int) (Value, error) {
	w, err := Parse(v)
	if err != nil {
		return Unknown(), err
	}
	return Known(w), nil
}

// FromPointer maps a nullable integer: nil is unknown, anything else must be
// in range.
func FromPointer(v *int) (Value, error) {
	if v == nil {
		return Unknown(), nil
	}
	return FromInt(*v)
}

// Get returns the verdict and whether it is known.
func (v Value) Get() (WDL, bool) { return v.wdl, v.known }

// IsKnown reports whether the value carries a verdict.
func (v Value) IsKnown() bool { return v.known }

func (v Value) String() string {
	if !v.known {
		return "unknown"
	}
	return v.wdl.String()
}

// MarshalJSON encodes unknown as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.known {
		return []byte("null"), nil
	}
	return json.Marshal(int(v.wdl))
}

// UnmarshalJSON decodes null as unknown and rejects out-of-range numbers.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw *int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidWDL, strings.TrimSpace(string(data)))
	}
	parsed, err := FromPointer(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for fixture files.
func (v *Value) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw *int
	if err := unmarshal(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWDL, err)
	}
	parsed, err := FromPointer(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
