package tablebase

import (
	"cmp"
	"slices"
	"strings"
)

// Groups holds moves split by outcome for the mover.
type Groups struct {
	Win     []Move `json:"win"`
	Draw    []Move `json:"draw"`
	Loss    []Move `json:"loss"`
	Unknown []Move `json:"unknown"`
}

// Classified is the organizer's output.
type Classified struct {
	Groups
	Total int `json:"total"`
}

// Group splits moves into buckets, preserving input order within each.
func Group(moves []Move) Groups {
	g := Groups{
		Win:     []Move{},
		Draw:    []Move{},
		Loss:    []Move{},
		Unknown: []Move{},
	}
	for _, m := range moves {
		switch m.Bucket() {
		case CategoryWin:
			g.Win = append(g.Win, m)
		case CategoryDraw:
			g.Draw = append(g.Draw, m)
		case CategoryLoss:
			g.Loss = append(g.Loss, m)
		default:
			g.Unknown = append(g.Unknown, m)
		}
	}
	return g
}

// ClassifyMovesByDTZ groups moves and orders each bucket: wins fastest
// first, draws by SAN, losses slowest first. DTZ is compared by magnitude
// and moves without DTZ go last. The input is not modified.
func ClassifyMovesByDTZ(moves []Move) Classified {
	g := Group(moves)
	slices.SortFunc(g.Win, compareWins)
	slices.SortFunc(g.Draw, compareNotation)
	slices.SortFunc(g.Loss, compareLosses)
	slices.SortFunc(g.Unknown, compareNotation)
	return Classified{Groups: g, Total: len(moves)}
}

// All flattens the groups, best bucket first.
func (g Groups) All() []Move {
	out := make([]Move, 0, g.Len())
	out = append(out, g.Win...)
	out = append(out, g.Draw...)
	out = append(out, g.Loss...)
	return append(out, g.Unknown...)
}

// Len is the number of grouped moves.
func (g Groups) Len() int {
	return len(g.Win) + len(g.Draw) + len(g.Loss) + len(g.Unknown)
}

// Best returns the first move of the best non-empty known bucket.
func (g Groups) Best() (Move, bool) {
	for _, bucket := range [][]Move{g.Win, g.Draw, g.Loss} {
		if len(bucket) > 0 {
			return bucket[0], true
		}
	}
	return Move{}, false
}

// Of returns the bucket for c.
func (g Groups) Of(c Category) []Move {
	switch c {
	case CategoryWin:
		return g.Win
	case CategoryDraw:
		return g.Draw
	case CategoryLoss:
		return g.Loss
	default:
		return g.Unknown
	}
}

func compareWins(a, b Move) int {
	if c := compareDTZ(a, b, false); c != 0 {
		return c
	}
	return compareNotation(a, b)
}

func compareLosses(a, b Move) int {
	if c := compareDTZ(a, b, true); c != 0 {
		return c
	}
	return compareNotation(a, b)
}

// compareDTZ orders by |DTZ|, ascending or descending, with missing values
// after present ones in both directions.
func compareDTZ(a, b Move, descending bool) int {
	switch {
	case a.DTZ == nil && b.DTZ == nil:
		return 0
	case a.DTZ == nil:
		return 1
	case b.DTZ == nil:
		return -1
	}
	c := cmp.Compare(abs(*a.DTZ), abs(*b.DTZ))
	if descending {
		return -c
	}
	return c
}

func compareNotation(a, b Move) int {
	if c := strings.Compare(a.SAN, b.SAN); c != 0 {
		return c
	}
	return strings.Compare(a.UCI, b.UCI)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
