// Package othello implements the bit-parallel board primitives the
// search kernel is built on: positions, legal-move generation, flip
// computation, parity bookkeeping, and disc stability.
package othello

import "math/bits"

// Color of a player. Black moves first.
type Color uint8

const (
	Black Color = iota
	White
)

func (c Color) Other() Color {
	return c ^ 1
}

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Square indices run A1=0 through H8=63, file-major within each rank.
// Pass and NoMove are pseudo-squares used by the search.
const (
	Pass   = 64
	NoMove = 65
)

// Position holds the disc sets of the side to move and of the
// opponent. The two sets never overlap. It is a plain value at API
// boundaries; the search mutates a single instance in place along its
// current path via Play/Unplay.
type Position struct {
	Mover uint64
	Opp   uint64
}

// Start returns the standard starting position, Black to move.
func Start() Position {
	return Position{
		Mover: 1<<E4 | 1<<D5,
		Opp:   1<<D4 | 1<<E5,
	}
}

func (p Position) Occupied() uint64 {
	return p.Mover | p.Opp
}

func (p Position) Empty() uint64 {
	return ^(p.Mover | p.Opp)
}

func (p Position) EmptyCount() int {
	return bits.OnesCount64(p.Empty())
}

// DiscDiff is the raw disc differential for the side to move.
func (p Position) DiscDiff() int {
	return bits.OnesCount64(p.Mover) - bits.OnesCount64(p.Opp)
}

// FinalScore is the exact game-over score for the side to move.
// Remaining empty squares are awarded to the winner.
func (p Position) FinalScore() int {
	d := p.DiscDiff()
	if e := p.EmptyCount(); e > 0 {
		if d > 0 {
			d += e
		} else if d < 0 {
			d -= e
		}
	}
	return d
}

// Play places a disc on sq for the side to move, turning the given
// flips, and swaps sides. The flip mask is the undo token; Unplay with
// the same arguments restores the previous position exactly.
func (p *Position) Play(sq int, flips uint64) {
	x := uint64(1) << uint(sq)
	p.Mover, p.Opp = p.Opp^flips, p.Mover|flips|x
}

// Unplay reverses a Play with the same square and flip mask.
func (p *Position) Unplay(sq int, flips uint64) {
	x := uint64(1) << uint(sq)
	p.Mover, p.Opp = p.Opp&^(flips|x), p.Mover|flips
}

// Pass swaps sides without placing a disc.
func (p *Position) Pass() {
	p.Mover, p.Opp = p.Opp, p.Mover
}

// Passed returns the position with sides swapped.
func (p Position) Passed() Position {
	return Position{Mover: p.Opp, Opp: p.Mover}
}

// LegalMoves returns the bitset of squares playable by the side to
// move.
func (p Position) LegalMoves() uint64 {
	return Moves(p.Mover, p.Opp)
}

// GameOver reports whether neither side has a legal move.
func (p Position) GameOver() bool {
	return Moves(p.Mover, p.Opp) == 0 && Moves(p.Opp, p.Mover) == 0
}
