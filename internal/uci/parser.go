package uci

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageKind classifies one line of engine output.
type MessageKind int

const (
	MessageUnrecognized MessageKind = iota
	MessageIdentity
	MessageCapabilityAck
	MessageReadyForCommands
	MessageInfo
	MessageBestMove
	MessageNoMove
)

func (k MessageKind) String() string {
	switch k {
	case MessageIdentity:
		return "id"
	case MessageCapabilityAck:
		return "uciok"
	case MessageReadyForCommands:
		return "readyok"
	case MessageInfo:
		return "info"
	case MessageBestMove:
		return "bestmove"
	case MessageNoMove:
		return "nomove"
	default:
		return "unrecognized"
	}
}

// Message is a decoded output line. Only the field matching Kind is set.
type Message struct {
	Kind     MessageKind
	Identity *Identity
	Info     *InfoUpdate
	Move     *Move
	Ponder   *Move
}

// Identity is an "id name ..." or "id author ..." line.
type Identity struct {
	Key   string
	Value string
}

// InfoUpdate is one "info" line. Centipawns and MateIn are nil when the
// line carries no score; they are never both set.
type InfoUpdate struct {
	Depth      int
	SelDepth   int
	MultiPV    int
	Centipawns *int
	MateIn     *int
	Bound      string // "lowerbound", "upperbound" or ""
	Nodes      int64
	PV         []Move
}

// HasScore reports whether the line carried a score.
func (i *InfoUpdate) HasScore() bool {
	return i.Centipawns != nil || i.MateIn != nil
}

// Move is a move in coordinate notation, e.g. e7e8q.
type Move struct {
	From      string
	To        string
	Promotion string
}

// ParseMove parses coordinate notation. The null move "0000" is rejected.
func ParseMove(s string) (Move, error) {
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("invalid move %q", s)
	}
	from, to := s[0:2], s[2:4]
	if !isSquare(from) || !isSquare(to) {
		return Move{}, fmt.Errorf("invalid move %q", s)
	}
	m := Move{From: from, To: to}
	if len(s) == 5 {
		switch p := strings.ToLower(s[4:]); p {
		case "q", "r", "b", "n":
			m.Promotion = p
		default:
			return Move{}, fmt.Errorf("invalid promotion in %q", s)
		}
	}
	return m, nil
}

func isSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

func (m Move) String() string {
	return m.From + m.To + m.Promotion
}

// MarshalText encodes the move in coordinate notation.
func (m Move) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Move) UnmarshalText(text []byte) error {
	parsed, err := ParseMove(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

var unrecognized = Message{Kind: MessageUnrecognized}

// ParseLine decodes one line of engine output. It never fails: anything it
// cannot make sense of, including malformed numbers and moves, is
// MessageUnrecognized.
func ParseLine(line string) Message {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return unrecognized
	}

	switch fields[0] {
	case "uciok":
		return Message{Kind: MessageCapabilityAck}
	case "readyok":
		return Message{Kind: MessageReadyForCommands}
	case "id":
		if len(fields) < 3 {
			return unrecognized
		}
		return Message{Kind: MessageIdentity, Identity: &Identity{
			Key:   fields[1],
			Value: strings.Join(fields[2:], " "),
		}}
	case "bestmove":
		return parseBestMove(fields[1:])
	case "info":
		info, ok := parseInfo(fields[1:])
		if !ok {
			return unrecognized
		}
		return Message{Kind: MessageInfo, Info: info}
	default:
		return unrecognized
	}
}

func parseBestMove(args []string) Message {
	if len(args) == 0 {
		return unrecognized
	}
	if args[0] == "(none)" || args[0] == "0000" {
		return Message{Kind: MessageNoMove}
	}
	best, err := ParseMove(args[0])
	if err != nil {
		return unrecognized
	}
	msg := Message{Kind: MessageBestMove, Move: &best}
	if len(args) >= 2 && args[1] == "ponder" {
		if len(args) < 3 {
			return unrecognized
		}
		if args[2] == "(none)" {
			return msg
		}
		ponder, err := ParseMove(args[2])
		if err != nil {
			return unrecognized
		}
		msg.Ponder = &ponder
	}
	return msg
}

// infoSkip is the number of values following info keys that are read
// but not kept.
var infoSkip = map[string]int{
	"time":           1,
	"nps":            1,
	"hashfull":       1,
	"tbhits":         1,
	"sbhits":         1,
	"cpuload":        1,
	"currmove":       1,
	"currmovenumber": 1,
	"wdl":            3,
}

func parseInfo(args []string) (*InfoUpdate, bool) {
	info := &InfoUpdate{MultiPV: 1}

	for i := 0; i < len(args); i++ {
		key := args[i]
		switch key {
		case "string":
			// free text, not an evaluation
			return nil, false
		case "depth", "seldepth", "multipv":
			n, ok := intAt(args, i+1)
			if !ok {
				return nil, false
			}
			switch key {
			case "depth":
				info.Depth = n
			case "seldepth":
				info.SelDepth = n
			default:
				info.MultiPV = n
			}
			i++
		case "nodes":
			if i+1 >= len(args) {
				return nil, false
			}
			n, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				return nil, false
			}
			info.Nodes = n
			i++
		case "score":
			if i+2 >= len(args) {
				return nil, false
			}
			n, ok := intAt(args, i+2)
			if !ok {
				return nil, false
			}
			switch args[i+1] {
			case "cp":
				info.Centipawns, info.MateIn = &n, nil
			case "mate":
				info.MateIn, info.Centipawns = &n, nil
			default:
				return nil, false
			}
			i += 2
			if i+1 < len(args) && (args[i+1] == "lowerbound" || args[i+1] == "upperbound") {
				info.Bound = args[i+1]
				i++
			}
		case "pv":
			pv := make([]Move, 0, len(args)-i-1)
			for _, tok := range args[i+1:] {
				m, err := ParseMove(tok)
				if err != nil {
					return nil, false
				}
				pv = append(pv, m)
			}
			info.PV = pv
			return info, true
		case "refutation", "currline":
			// trailing move lists we do not use
			return info, true
		default:
			if n, ok := infoSkip[key]; ok {
				if i+n >= len(args) {
					return nil, false
				}
				i += n
			}
		}
	}
	return info, true
}

func intAt(args []string, i int) (int, bool) {
	if i >= len(args) {
		return 0, false
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, false
	}
	return n, true
}
