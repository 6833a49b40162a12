package uci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func TestParseLineKinds(t *testing.T) {
	tests := []struct {
		line string
		want MessageKind
	}{
		{"uciok", MessageCapabilityAck},
		{"readyok", MessageReadyForCommands},
		{"  readyok  ", MessageReadyForCommands},
		{"id name Stockfish 16", MessageIdentity},
		{"bestmove e2e4", MessageBestMove},
		{"bestmove e7e8q ponder a1a2", MessageBestMove},
		{"bestmove (none)", MessageNoMove},
		{"bestmove 0000", MessageNoMove},
		{"info depth 12 score cp 20 pv e2e4", MessageInfo},
		{"info depth 3", MessageInfo},
		{"", MessageUnrecognized},
		{"Stockfish 16 by the Stockfish developers", MessageUnrecognized},
		{"option name Hash type spin default 16 min 1 max 33554432", MessageUnrecognized},
		{"info string NNUE evaluation using nn-5af11540bbfe.nnue", MessageUnrecognized},
		{"id name", MessageUnrecognized},
		{"bestmove", MessageUnrecognized},
		{"bestmove e9e4", MessageUnrecognized},
		{"bestmove e7e8k", MessageUnrecognized},
		{"bestmove e2e4 ponder", MessageUnrecognized},
		{"info depth x", MessageUnrecognized},
		{"info depth 5 score cp", MessageUnrecognized},
		{"info depth 5 score cp abc", MessageUnrecognized},
		{"info depth 5 score wdl 1 2", MessageUnrecognized},
		{"info depth 5 score cp 10 pv e2e4 zz", MessageUnrecognized},
		{"info nodes 12x", MessageUnrecognized},
		{"info time", MessageUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLine(tt.line).Kind)
		})
	}
}

func TestParseIdentity(t *testing.T) {
	msg := ParseLine("id name Stockfish 16.1")
	require.Equal(t, MessageIdentity, msg.Kind)
	assert.Equal(t, "name", msg.Identity.Key)
	assert.Equal(t, "Stockfish 16.1", msg.Identity.Value)
}

func TestParseBestMove(t *testing.T) {
	msg := ParseLine("bestmove e7e8q ponder h2g1")
	require.Equal(t, MessageBestMove, msg.Kind)
	assert.Equal(t, Move{From: "e7", To: "e8", Promotion: "q"}, *msg.Move)
	require.NotNil(t, msg.Ponder)
	assert.Equal(t, "h2g1", msg.Ponder.String())

	msg = ParseLine("bestmove a1a8 ponder (none)")
	require.Equal(t, MessageBestMove, msg.Kind)
	assert.Nil(t, msg.Ponder)

	msg = ParseLine("bestmove (none)")
	assert.Nil(t, msg.Move)
}

func TestParseInfo(t *testing.T) {
	line := "info depth 24 seldepth 31 multipv 1 score cp -45 upperbound wdl 10 900 90 nodes 1234567 nps 900000 hashfull 12 tbhits 5 time 1371 pv d2d4 g8f6 c2c4"
	msg := ParseLine(line)
	require.Equal(t, MessageInfo, msg.Kind)

	info := msg.Info
	assert.Equal(t, 24, info.Depth)
	assert.Equal(t, 31, info.SelDepth)
	assert.Equal(t, 1, info.MultiPV)
	assert.Equal(t, intp(-45), info.Centipawns)
	assert.Nil(t, info.MateIn)
	assert.Equal(t, "upperbound", info.Bound)
	assert.Equal(t, int64(1234567), info.Nodes)
	require.Len(t, info.PV, 3)
	assert.Equal(t, "d2d4", info.PV[0].String())
	assert.Equal(t, "c2c4", info.PV[2].String())
	assert.True(t, info.HasScore())
}

func TestParseInfoMate(t *testing.T) {
	msg := ParseLine("info depth 30 multipv 2 score mate -3 pv a1a2")
	require.Equal(t, MessageInfo, msg.Kind)
	assert.Equal(t, intp(-3), msg.Info.MateIn)
	assert.Nil(t, msg.Info.Centipawns)
	assert.Equal(t, 2, msg.Info.MultiPV)
}

func TestParseInfoWithoutScore(t *testing.T) {
	msg := ParseLine("info depth 7 currmove e2e4 currmovenumber 1")
	require.Equal(t, MessageInfo, msg.Kind)
	assert.False(t, msg.Info.HasScore())
	assert.Equal(t, 1, msg.Info.MultiPV, "multipv defaults to the main line")
	assert.Empty(t, msg.Info.PV)
}

func TestParseInfoStopsAtRefutation(t *testing.T) {
	msg := ParseLine("info depth 4 score cp 5 refutation d1h5 g6h5")
	require.Equal(t, MessageInfo, msg.Kind)
	assert.Equal(t, intp(5), msg.Info.Centipawns)
}

func TestParseMove(t *testing.T) {
	for _, s := range []string{"e2e4", "a7a8n", "h1a8", "b7b8Q"} {
		_, err := ParseMove(s)
		assert.NoError(t, err, s)
	}
	for _, s := range []string{"", "0000", "e2e", "e2e4qq", "i2i4", "e0e4", "e7e8p", "e2-e4"} {
		_, err := ParseMove(s)
		assert.Error(t, err, s)
	}

	m, err := ParseMove("b7b8Q")
	require.NoError(t, err)
	assert.Equal(t, "b7b8q", m.String())
}

func TestMoveText(t *testing.T) {
	var m Move
	require.NoError(t, m.UnmarshalText([]byte("g7g8r")))
	text, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "g7g8r", string(text))

	assert.Error(t, m.UnmarshalText([]byte("nope")))
}

func FuzzParseLine(f *testing.F) {
	for _, seed := range []string{
		"info depth 1 score cp 3 pv e2e4",
		"bestmove e2e4 ponder e7e5",
		"id name x",
		"info wdl 1",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, line string) {
		_ = ParseLine(line)
	})
}
