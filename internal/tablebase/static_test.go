package tablebase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/endgame-mcp/internal/wdl"
)

const kqkFEN = "8/8/8/8/8/2k5/8/K1Q5 w - - 0 1"

const jsonFixture = `{
  "positions": [
    {
      "fen": "8/8/8/8/8/2k5/8/K1Q5 w - - 0 1",
      "wdl": 2,
      "dtz": 5,
      "dtm": 9,
      "moves": [
        {"uci": "c1c2", "san": "Qc2+", "wdl": -2, "dtz": -4, "dtm": -8},
        {"uci": "c1b2", "san": "Qb2+", "wdl": 0, "dtz": 0, "dtm": null, "category": "draw"}
      ]
    }
  ]
}`

const yamlFixture = `
positions:
  - fen: 8/8/8/8/8/2k5/8/K1Q5 w - - 0 1
    wdl: 2
    dtz: 5
    moves:
      - uci: c1c2
        san: Qc2+
        wdl: -2
        dtz: -4
      - uci: c1b2
        san: Qb2+
        wdl: 0
        dtz: 0
        category: draw
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStaticProber(t *testing.T) {
	for _, tc := range []struct{ name, file, content string }{
		{"json", "positions.json", jsonFixture},
		{"yaml", "positions.yaml", yamlFixture},
	} {
		t.Run(tc.name, func(t *testing.T) {
			prober, err := LoadStaticProber(writeFixture(t, tc.file, tc.content))
			require.NoError(t, err)
			assert.Equal(t, 1, prober.Len())

			// Move counters do not matter
			pos, err := prober.Probe(context.Background(), "8/8/8/8/8/2k5/8/K1Q5 w - - 12 40")
			require.NoError(t, err)
			assert.Equal(t, wdl.Known(wdl.Win), pos.WDL)
			require.Len(t, pos.Moves, 2)

			m, ok := pos.Move("c1b2")
			require.True(t, ok)
			assert.Equal(t, wdl.Known(wdl.Draw), m.WDL, "a zero WDL must load as a draw")
			assert.Equal(t, CategoryDraw, m.Category)
			require.NotNil(t, m.DTZ)
			assert.Equal(t, 0, *m.DTZ)
			assert.Nil(t, m.DTM)
		})
	}
}

func TestStaticProberNotFound(t *testing.T) {
	prober := NewStaticProber(nil)
	_, err := prober.Probe(context.Background(), kqkFEN)
	assert.True(t, errors.Is(err, ErrPositionNotFound))
}

func TestStaticProberReturnsCopies(t *testing.T) {
	prober := NewStaticProber([]Position{{
		FEN:   kqkFEN,
		Moves: []Move{{UCI: "c1c2", SAN: "Qc2+"}},
	}})
	ctx := context.Background()

	pos, err := prober.Probe(ctx, kqkFEN)
	require.NoError(t, err)
	pos.Moves[0].SAN = "mutated"

	again, err := prober.Probe(ctx, kqkFEN)
	require.NoError(t, err)
	assert.Equal(t, "Qc2+", again.Moves[0].SAN)
}

func TestStaticProberHonoursContext(t *testing.T) {
	prober := NewStaticProber([]Position{{FEN: kqkFEN}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := prober.Probe(ctx, kqkFEN)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadStaticProberErrors(t *testing.T) {
	_, err := LoadStaticProber(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadStaticProber(writeFixture(t, "bad.json", `{"positions":[{"fen":"x","wdl":9}]}`))
	assert.ErrorIs(t, err, wdl.ErrInvalidWDL)

	_, err = LoadStaticProber(writeFixture(t, "nofen.yaml", "positions:\n  - wdl: 0\n"))
	assert.Error(t, err)
}

func TestNormalizeFEN(t *testing.T) {
	assert.Equal(t, "8/8/8/8/8/2k5/8/K1Q5 w - -", NormalizeFEN(kqkFEN))
	assert.Equal(t, "8/8/8/8/8/2k5/8/K1Q5 w - -", NormalizeFEN("  8/8/8/8/8/2k5/8/K1Q5   w - -  "))
}
