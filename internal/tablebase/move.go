// Package tablebase organizes endgame tablebase probe results.
//
// Every WDL value in this package follows the tablebase convention: it is
// from the point of view of the side to move at the annotated position. A
// Move's WDL and DTZ therefore describe the position after the move, from
// the opponent's side. Category, when present, is already from the mover's
// side.
package tablebase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmmcquay/endgame-mcp/internal/wdl"
)

// Category is the outcome bucket of a move for the side that plays it.
type Category string

const (
	CategoryWin     Category = "win"
	CategoryDraw    Category = "draw"
	CategoryLoss    Category = "loss"
	CategoryUnknown Category = "unknown"
)

// ParseCategory accepts win/draw/loss in any case. Empty input is the
// absent category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "win":
		return CategoryWin, nil
	case "draw":
		return CategoryDraw, nil
	case "loss":
		return CategoryLoss, nil
	default:
		return "", fmt.Errorf("unknown move category %q", s)
	}
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*c = ""
		return nil
	}
	parsed, err := ParseCategory(*raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c *Category) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseCategory(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Move is one candidate move with its probe result.
type Move struct {
	UCI      string    `json:"uci" yaml:"uci"`
	SAN      string    `json:"san" yaml:"san"`
	WDL      wdl.Value `json:"wdl" yaml:"wdl"`
	DTZ      *int      `json:"dtz" yaml:"dtz"`
	DTM      *int      `json:"dtm" yaml:"dtm"`
	Category Category  `json:"category,omitempty" yaml:"category"`
}

// Bucket returns the move's outcome bucket for the mover. An explicit
// Category wins; otherwise the WDL is flipped to the mover's side; otherwise
// the DTZ sign is used (negative means the opponent is losing). With none
// of these the move is unknown.
func (m Move) Bucket() Category {
	if m.Category != "" {
		return m.Category
	}
	if w, ok := wdl.AfterMoveForMover(m.WDL).Get(); ok {
		switch w.Outcome() {
		case wdl.OutcomeWin:
			return CategoryWin
		case wdl.OutcomeLoss:
			return CategoryLoss
		default:
			return CategoryDraw
		}
	}
	if m.DTZ != nil {
		switch {
		case *m.DTZ < 0:
			return CategoryWin
		case *m.DTZ > 0:
			return CategoryLoss
		default:
			return CategoryDraw
		}
	}
	return CategoryUnknown
}

// Position is a probed position with its legal moves.
type Position struct {
	FEN   string    `json:"fen" yaml:"fen"`
	WDL   wdl.Value `json:"wdl" yaml:"wdl"`
	DTZ   *int      `json:"dtz" yaml:"dtz"`
	DTM   *int      `json:"dtm" yaml:"dtm"`
	Moves []Move    `json:"moves" yaml:"moves"`
}

// Move looks up a move by its coordinate notation.
func (p *Position) Move(uci string) (Move, bool) {
	for _, m := range p.Moves {
		if strings.EqualFold(m.UCI, uci) {
			return m, true
		}
	}
	return Move{}, false
}
