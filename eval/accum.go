package eval

import (
	"math/bits"

	"github.com/verdile/desdemona/othello"
)

// Accum carries the material term of a Positional score incrementally
// along a search path, updated and restored move by move so leaf
// evaluations avoid rescanning the board. It follows the same
// make/unmake discipline as the position it shadows: Update on play,
// Restore on undo, in stack order.
type Accum struct {
	eval     *Positional
	material int // from the current side to move's point of view
}

func NewAccum(e *Positional) *Accum {
	return &Accum{eval: e}
}

// Reset recomputes the material term from scratch.
func (a *Accum) Reset(p othello.Position) {
	a.material = a.eval.material(p)
}

func (a *Accum) flipDelta(sq int, flips uint64) int {
	d := int(a.eval.weights[sq])
	for f := flips; f != 0; f &= f - 1 {
		d += 2 * int(a.eval.weights[bits.TrailingZeros64(f)])
	}
	return d
}

// Update applies a move's material delta and flips the sign for the
// new side to move.
func (a *Accum) Update(sq int, flips uint64) {
	a.material = -(a.material + a.flipDelta(sq, flips))
}

// Restore undoes a matching Update.
func (a *Accum) Restore(sq int, flips uint64) {
	a.material = -a.material - a.flipDelta(sq, flips)
}

// Pass flips the point of view without a material change.
func (a *Accum) Pass() {
	a.material = -a.material
}

// Score completes the evaluation with the mobility term, which is
// recomputed from the position.
func (a *Accum) Score(p othello.Position, ply int) int {
	raw := a.material
	raw += mobilityWeight * (bits.OnesCount64(othello.Moves(p.Mover, p.Opp)) -
		bits.OnesCount64(othello.Moves(p.Opp, p.Mover)))
	return clamp(raw / 8)
}
