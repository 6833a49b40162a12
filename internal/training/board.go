package training

import (
	"fmt"
	"strings"

	"github.com/corentings/chess/v2"

	"github.com/dmmcquay/endgame-mcp/internal/wdl"
)

// NewGame parses fen into a game positioned at it.
func NewGame(fen string) (*chess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidFEN)
	}
	option, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return chess.NewGame(option), nil
}

// SideToMove reports whose turn it is in pos.
func SideToMove(pos *chess.Position) wdl.Side {
	if pos.Turn() == chess.Black {
		return wdl.Black
	}
	return wdl.White
}

// SideFromFEN parses fen and returns the side to move.
func SideFromFEN(fen string) (wdl.Side, error) {
	game, err := NewGame(fen)
	if err != nil {
		return wdl.White, err
	}
	return SideToMove(game.Position()), nil
}

// SAN converts a coordinate move to standard notation, or returns "" when
// the move does not decode in pos.
func SAN(pos *chess.Position, uci string) string {
	mv, err := chess.UCINotation{}.Decode(pos, strings.ToLower(uci))
	if err != nil {
		return ""
	}
	return chess.AlgebraicNotation{}.Encode(pos, mv)
}

// SANFromFEN is SAN for a position given as FEN.
func SANFromFEN(fen, uci string) string {
	game, err := NewGame(fen)
	if err != nil {
		return ""
	}
	return SAN(game.Position(), uci)
}

// decodeMove accepts coordinate or standard notation.
func decodeMove(pos *chess.Position, move string) (*chess.Move, error) {
	move = strings.TrimSpace(move)
	if move == "" {
		return nil, fmt.Errorf("%w: empty", ErrIllegalMove)
	}
	if mv, err := (chess.UCINotation{}).Decode(pos, strings.ToLower(move)); err == nil {
		return mv, nil
	}
	mv, err := chess.AlgebraicNotation{}.Decode(pos, move)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, move)
	}
	return mv, nil
}

// LineSAN converts a principal variation to standard notation. Conversion
// stops at the first move that does not decode.
func LineSAN(fen string, line []string) []string {
	game, err := NewGame(fen)
	if err != nil {
		return nil
	}
	pos := game.Position()
	out := make([]string, 0, len(line))
	for _, uci := range line {
		mv, err := chess.UCINotation{}.Decode(pos, strings.ToLower(uci))
		if err != nil {
			break
		}
		out = append(out, chess.AlgebraicNotation{}.Encode(pos, mv))
		pos = pos.Update(mv)
	}
	return out
}
