package mcp

import (
	"fmt"
	"strings"

	"github.com/dmmcquay/endgame-mcp/internal/uci"
)

// formatScore renders an engine score from the side to move's view.
func formatScore(centipawns, mateIn *int) string {
	switch {
	case mateIn != nil && *mateIn > 0:
		return fmt.Sprintf("mate in %d", *mateIn)
	case mateIn != nil && *mateIn < 0:
		return fmt.Sprintf("mated in %d", -*mateIn)
	case mateIn != nil:
		return "mated"
	case centipawns != nil:
		return fmt.Sprintf("%+.2f", float64(*centipawns)/100)
	default:
		return "no score reported"
	}
}

func formatEvaluation(v *EvaluationView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Evaluation for %s", v.Side)
	if v.Depth > 0 {
		fmt.Fprintf(&sb, " (depth %d)", v.Depth)
	}
	fmt.Fprintf(&sb, ": %s\n", formatScore(v.Centipawns, v.MateIn))

	if v.BestMove != "" {
		fmt.Fprintf(&sb, "Best move: %s (%s)\n", displayMove(v.BestMoveSAN, v.BestMove), v.BestMove)
	} else {
		sb.WriteString("Best move: none\n")
	}

	line := v.PVSAN
	if len(line) < len(v.PV) {
		// Keep the engine's notation for the part that did not convert.
		line = append(append([]string(nil), line...), v.PV[len(line):]...)
	}
	if len(line) > 0 {
		fmt.Fprintf(&sb, "Line: %s\n", strings.Join(line, " "))
	}
	return sb.String()
}

func displayMove(san, uciMove string) string {
	if san != "" {
		return san
	}
	return uciMove
}

func engineName(s uci.Status) string {
	if s.Engine == "" {
		return "unknown engine"
	}
	return s.Engine
}
