package wdl

import (
	"fmt"
	"strings"
)

// Side identifies the player who made a move.
type Side int

const (
	White Side = iota
	Black
)

func (s Side) String() string {
	if s == Black {
		return "black"
	}
	return "white"
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// ParseSide accepts "white"/"w" and "black"/"b" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	default:
		return White, fmt.Errorf("unknown side %q", s)
	}
}

// ToMoverPerspective expresses a before/after pair from the mover's point of
// view. before was measured with the mover to move and is returned as is;
// afterFromOpponent was measured with the opponent to move and is flipped.
func ToMoverPerspective(before, afterFromOpponent Value) (beforeMover, afterMover Value) {
	return before, AfterMoveForMover(afterFromOpponent)
}

// AfterMoveForMover re-expresses a value annotating the position after a move
// from the point of view of the side that made it.
func AfterMoveForMover(afterFromOpponent Value) Value {
	return flip(afterFromOpponent)
}

func flip(v Value) Value {
	w, ok := v.Get()
	if !ok {
		return Unknown()
	}
	return Known(-w)
}
