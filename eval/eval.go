// Package eval defines the static-evaluator boundary the midgame
// search calls into, and a table-driven positional implementation.
package eval

import (
	"math/bits"

	"github.com/verdile/desdemona/othello"
)

// ScoreMax bounds every static score; exact endgame scores use the
// full [-64, 64] range, so heuristic scores stay strictly inside it.
const ScoreMax = 63

// Evaluator scores a position from the side to move's point of view,
// in disc units.
type Evaluator interface {
	Score(p othello.Position, ply int) int
}

// Square weights for the positional evaluator. Corners dominate, the
// X and C squares next to an open corner are liabilities.
var defaultWeights = [64]int16{
	90, -15, 10, 5, 5, 10, -15, 90,
	-15, -25, 1, 1, 1, 1, -25, -15,
	10, 1, 3, 2, 2, 3, 1, 10,
	5, 1, 2, 1, 1, 2, 1, 5,
	5, 1, 2, 1, 1, 2, 1, 5,
	10, 1, 3, 2, 2, 3, 1, 10,
	-15, -25, 1, 1, 1, 1, -25, -15,
	90, -15, 10, 5, 5, 10, -15, 90,
}

const mobilityWeight = 8

// Positional is a square-weight plus mobility evaluator. It is
// deliberately simple; the search treats any Evaluator as an external
// collaborator and only relies on the mover-relative sign convention.
type Positional struct {
	weights [64]int16
}

func NewPositional() *Positional {
	e := &Positional{weights: defaultWeights}
	return e
}

func (e *Positional) material(p othello.Position) int {
	var raw int
	for m := p.Mover; m != 0; m &= m - 1 {
		raw += int(e.weights[bits.TrailingZeros64(m)])
	}
	for o := p.Opp; o != 0; o &= o - 1 {
		raw -= int(e.weights[bits.TrailingZeros64(o)])
	}
	return raw
}

func (e *Positional) Score(p othello.Position, ply int) int {
	raw := e.material(p)
	raw += mobilityWeight * (bits.OnesCount64(othello.Moves(p.Mover, p.Opp)) -
		bits.OnesCount64(othello.Moves(p.Opp, p.Mover)))
	return clamp(raw / 8)
}

func clamp(v int) int {
	if v > ScoreMax {
		return ScoreMax
	}
	if v < -ScoreMax {
		return -ScoreMax
	}
	return v
}
