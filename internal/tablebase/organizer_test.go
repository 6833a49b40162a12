package tablebase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/endgame-mcp/internal/wdl"
)

func intp(n int) *int { return &n }

func known(w wdl.WDL) wdl.Value { return wdl.Known(w) }

// KQ vs K style candidate list, values as a tablebase reports them: each
// move annotated from the opponent's side after the move.
func sampleMoves() []Move {
	return []Move{
		{UCI: "c1c2", SAN: "Qc2+", WDL: known(wdl.Loss), DTZ: intp(-9)},
		{UCI: "c1c7", SAN: "Qc7", WDL: known(wdl.Loss), DTZ: intp(-3)},
		{UCI: "a1b1", SAN: "Kb1", WDL: known(wdl.Draw), DTZ: intp(0)},
		{UCI: "c1a3", SAN: "Qa3", WDL: known(wdl.Draw), DTZ: intp(0)},
		{UCI: "c1c3", SAN: "Qxc3", WDL: known(wdl.Win), DTZ: intp(4)},
		{UCI: "c1d2", SAN: "Qd2", WDL: known(wdl.Win), DTZ: intp(12)},
		{UCI: "c1e1", SAN: "Qe1", WDL: known(wdl.Loss), DTZ: nil},
		{UCI: "a1a2", SAN: "Ka2", WDL: known(wdl.Win), DTZ: nil},
		{UCI: "c1h6", SAN: "Qh6"},
	}
}

func sans(moves []Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.SAN
	}
	return out
}

func TestClassifyMovesByDTZ(t *testing.T) {
	got := ClassifyMovesByDTZ(sampleMoves())

	assert.Equal(t, 9, got.Total)
	assert.Equal(t, []string{"Qc7", "Qc2+", "Qe1"}, sans(got.Win))
	assert.Equal(t, []string{"Kb1", "Qa3"}, sans(got.Draw))
	assert.Equal(t, []string{"Qd2", "Qxc3", "Ka2"}, sans(got.Loss))
	assert.Equal(t, []string{"Qh6"}, sans(got.Unknown))

	best, ok := got.Best()
	require.True(t, ok)
	assert.Equal(t, "Qc7", best.SAN)
}

func TestSortLaw(t *testing.T) {
	got := ClassifyMovesByDTZ(sampleMoves())

	for i := 0; i+1 < len(got.Win); i++ {
		a, b := got.Win[i].DTZ, got.Win[i+1].DTZ
		if a == nil || b == nil {
			assert.Nil(t, b, "missing DTZ must come last among wins")
			continue
		}
		assert.LessOrEqual(t, abs(*a), abs(*b))
	}
	for i := 0; i+1 < len(got.Loss); i++ {
		a, b := got.Loss[i].DTZ, got.Loss[i+1].DTZ
		if a == nil || b == nil {
			assert.Nil(t, b, "missing DTZ must come last among losses")
			continue
		}
		assert.GreaterOrEqual(t, abs(*a), abs(*b))
	}
}

func TestRegroupingIsNoOp(t *testing.T) {
	first := ClassifyMovesByDTZ(sampleMoves())
	second := ClassifyMovesByDTZ(first.All())
	assert.Equal(t, first, second)

	// Each bucket on its own also regroups onto itself.
	assert.Equal(t, first.Win, ClassifyMovesByDTZ(first.Win).Win)
	assert.Equal(t, first.Loss, ClassifyMovesByDTZ(first.Loss).Loss)
	assert.Equal(t, first.Draw, ClassifyMovesByDTZ(first.Draw).Draw)
}

func TestOrderDoesNotDependOnInput(t *testing.T) {
	moves := sampleMoves()
	reversed := make([]Move, len(moves))
	for i, m := range moves {
		reversed[len(moves)-1-i] = m
	}
	assert.Equal(t, ClassifyMovesByDTZ(moves), ClassifyMovesByDTZ(reversed))
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	moves := sampleMoves()
	before := sans(moves)
	ClassifyMovesByDTZ(moves)
	assert.Equal(t, before, sans(moves))
}

func TestBucketSources(t *testing.T) {
	tests := []struct {
		name string
		move Move
		want Category
	}{
		{"category wins over wdl", Move{Category: CategoryDraw, WDL: known(wdl.Loss), DTZ: intp(-5)}, CategoryDraw},
		{"opponent loss is mover win", Move{WDL: known(wdl.Loss)}, CategoryWin},
		{"opponent blessed loss is mover win", Move{WDL: known(wdl.BlessedLoss)}, CategoryWin},
		{"opponent cursed win is mover loss", Move{WDL: known(wdl.CursedWin)}, CategoryLoss},
		{"draw is draw, not unknown", Move{WDL: known(wdl.Draw)}, CategoryDraw},
		{"negative dtz without wdl", Move{DTZ: intp(-7)}, CategoryWin},
		{"positive dtz without wdl", Move{DTZ: intp(7)}, CategoryLoss},
		{"zero dtz without wdl", Move{DTZ: intp(0)}, CategoryDraw},
		{"nothing known", Move{}, CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.move.Bucket())
		})
	}
}

func TestEmptyInput(t *testing.T) {
	got := ClassifyMovesByDTZ(nil)
	assert.Equal(t, 0, got.Total)
	assert.Empty(t, got.Win)
	_, ok := got.Best()
	assert.False(t, ok)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"win":[],"draw":[],"loss":[],"unknown":[],"total":0}`, string(out))
}

func TestMoveJSON(t *testing.T) {
	var moves []Move
	err := json.Unmarshal([]byte(`[
		{"uci":"e1e2","san":"Ke2","wdl":0,"dtz":null,"dtm":null,"category":null},
		{"uci":"e1d2","san":"Kd2","wdl":null,"dtz":3,"dtm":null,"category":"Loss"}
	]`), &moves)
	require.NoError(t, err)

	require.Len(t, moves, 2)
	assert.Equal(t, known(wdl.Draw), moves[0].WDL)
	assert.Equal(t, Category(""), moves[0].Category)
	assert.Equal(t, CategoryDraw, moves[0].Bucket())
	assert.False(t, moves[1].WDL.IsKnown())
	assert.Equal(t, CategoryLoss, moves[1].Category)

	err = json.Unmarshal([]byte(`[{"uci":"e1e2","category":"blunder"}]`), &moves)
	assert.Error(t, err)
}

func TestGroupsOf(t *testing.T) {
	g := Group(sampleMoves())
	assert.Len(t, g.Of(CategoryWin), 3)
	assert.Len(t, g.Of(CategoryDraw), 2)
	assert.Len(t, g.Of(CategoryLoss), 3)
	assert.Len(t, g.Of(CategoryUnknown), 1)
	assert.Equal(t, 9, g.Len())
}
