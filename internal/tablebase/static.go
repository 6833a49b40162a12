package tablebase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// fixture is the on-disk layout of a StaticProber file.
type fixture struct {
	Positions []Position `json:"positions" yaml:"positions"`
}

// StaticProber serves positions loaded up front, typically the curated
// endgames of a training set.
type StaticProber struct {
	positions map[string]*Position
}

var _ Prober = (*StaticProber)(nil)

// NewStaticProber indexes positions by normalized FEN. Later duplicates
// replace earlier ones.
func NewStaticProber(positions []Position) *StaticProber {
	p := &StaticProber{positions: make(map[string]*Position, len(positions))}
	for i := range positions {
		pos := positions[i]
		p.positions[NormalizeFEN(pos.FEN)] = &pos
	}
	return p
}

// LoadStaticProber reads a JSON or YAML fixture, chosen by extension.
func LoadStaticProber(path string) (*StaticProber, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tablebase fixture: %w", err)
	}

	var fx fixture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fx)
	default:
		err = json.Unmarshal(data, &fx)
	}
	if err != nil {
		return nil, fmt.Errorf("parse tablebase fixture %s: %w", path, err)
	}

	for i, pos := range fx.Positions {
		if strings.TrimSpace(pos.FEN) == "" {
			return nil, fmt.Errorf("tablebase fixture %s: position %d has no fen", path, i)
		}
	}
	return NewStaticProber(fx.Positions), nil
}

// Probe returns a copy of the stored position.
func (p *StaticProber) Probe(ctx context.Context, fen string) (*Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pos, ok := p.positions[NormalizeFEN(fen)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, fen)
	}
	out := *pos
	out.Moves = append([]Move(nil), pos.Moves...)
	return &out, nil
}

// Len is the number of indexed positions.
func (p *StaticProber) Len() int { return len(p.positions) }
