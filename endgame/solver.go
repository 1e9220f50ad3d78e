// Package endgame solves positions exactly once few empty squares
// remain, returning disc-differential scores in the negamax
// convention: every function scores for the side to move, callers
// negate. The last four empties are handled by closed-form unrolled
// kernels, small counts by a dedicated shallow alpha-beta ordered on
// quadrant parity, and everything above that by a null-window search
// backed by the shared transposition table.
package endgame

import (
	"context"
	"math/bits"
	"sync/atomic"

	"github.com/verdile/desdemona/othello"
	"github.com/verdile/desdemona/ttable"
)

const (
	// shallowMax is the largest empty count handled without the
	// transposition table.
	shallowMax = 7

	scoreInf = 65
)

// Solver owns one position being searched; it is not safe for
// concurrent use, but any number of Solvers may share a table and a
// node counter.
type Solver struct {
	pos othello.Position
	el  *othello.EmptyList
	tt  *ttable.Table

	nodes      *atomic.Uint64
	localNodes uint64
}

func New(tt *ttable.Table, nodes *atomic.Uint64) *Solver {
	if nodes == nil {
		nodes = &atomic.Uint64{}
	}
	return &Solver{tt: tt, nodes: nodes, el: &othello.EmptyList{}}
}

// Solve returns the exact score of the position for the side to move.
func (s *Solver) Solve(ctx context.Context, pos othello.Position) int {
	return s.SolveWindow(ctx, pos, -scoreInf+1, scoreInf-1)
}

// SolveWindow solves within (alpha, beta), fail-soft: the result is
// exact when strictly inside the window and a valid bound otherwise.
func (s *Solver) SolveWindow(ctx context.Context, pos othello.Position, alpha, beta int) int {
	s.pos = pos
	s.el.Init(pos)
	return s.pvs(ctx, alpha, beta)
}

// Nodes reports nodes visited by this solver since creation.
func (s *Solver) Nodes() uint64 {
	return s.localNodes
}

func (s *Solver) visit() {
	s.localNodes++
	s.nodes.Add(1)
}

// solve1At scores the position with exactly one empty square left.
// Purely arithmetic: whoever manages to play fills the board.
func (s *Solver) solve1At(sq int) int {
	s.visit()
	d := s.pos.DiscDiff()
	if f := othello.Flips(s.pos.Mover, s.pos.Opp, sq); f != 0 {
		return d + 2*bits.OnesCount64(f) + 1
	}
	if f := othello.Flips(s.pos.Opp, s.pos.Mover, sq); f != 0 {
		return d - 2*bits.OnesCount64(f) - 1
	}
	// Neither side can play the last square.
	return s.pos.FinalScore()
}

// solve2At is the fully unrolled two-empty minimax. The square in an
// odd-parity quadrant is tried first.
func (s *Solver) solve2At(sq1, sq2, alpha, beta int, passed bool) int {
	s.visit()
	if !s.el.Odd(sq1) && s.el.Odd(sq2) {
		sq1, sq2 = sq2, sq1
	}
	best := -scoreInf
	if f := othello.Flips(s.pos.Mover, s.pos.Opp, sq1); f != 0 {
		s.pos.Play(sq1, f)
		best = -s.solve1At(sq2)
		s.pos.Unplay(sq1, f)
		if best >= beta {
			return best
		}
	}
	if f := othello.Flips(s.pos.Mover, s.pos.Opp, sq2); f != 0 {
		s.pos.Play(sq2, f)
		v := -s.solve1At(sq1)
		s.pos.Unplay(sq2, f)
		if v > best {
			best = v
		}
	}
	if best == -scoreInf {
		if passed {
			return s.pos.FinalScore()
		}
		s.pos.Pass()
		best = -s.solve2At(sq1, sq2, -beta, -alpha, true)
		s.pos.Pass()
	}
	return best
}

// solve3At unrolls the three-empty search, odd-parity squares first.
func (s *Solver) solve3At(sq1, sq2, sq3, alpha, beta int, passed bool) int {
	s.visit()
	sqs := [3]int{sq1, sq2, sq3}
	order := parityOrder(sqs[:], s.el)
	best := -scoreInf
	for _, i := range order {
		sq := sqs[i]
		f := othello.Flips(s.pos.Mover, s.pos.Opp, sq)
		if f == 0 {
			continue
		}
		o1, o2 := sqs[(i+1)%3], sqs[(i+2)%3]
		s.pos.Play(sq, f)
		s.el.Remove(sq)
		v := -s.solve2At(o1, o2, -beta, -alpha, false)
		s.el.Restore(sq)
		s.pos.Unplay(sq, f)
		if v > best {
			best = v
			if v >= beta {
				return v
			}
			if v > alpha {
				alpha = v
			}
		}
	}
	if best == -scoreInf {
		if passed {
			return s.pos.FinalScore()
		}
		s.pos.Pass()
		best = -s.solve3At(sq1, sq2, sq3, -beta, -alpha, true)
		s.pos.Pass()
	}
	return best
}

// solve4 unrolls the four-empty search over the empty list, with the
// parity-driven permutation of the four candidate squares.
func (s *Solver) solve4(alpha, beta int, passed bool) int {
	s.visit()
	var sqs [4]int
	n := 0
	for sq := s.el.First(); sq != othello.ListEnd; sq = s.el.Next(sq) {
		sqs[n] = sq
		n++
	}
	order := parityOrder(sqs[:], s.el)
	best := -scoreInf
	for _, i := range order {
		sq := sqs[i]
		f := othello.Flips(s.pos.Mover, s.pos.Opp, sq)
		if f == 0 {
			continue
		}
		o1, o2, o3 := sqs[(i+1)%4], sqs[(i+2)%4], sqs[(i+3)%4]
		s.pos.Play(sq, f)
		s.el.Remove(sq)
		v := -s.solve3At(o1, o2, o3, -beta, -alpha, false)
		s.el.Restore(sq)
		s.pos.Unplay(sq, f)
		if v > best {
			best = v
			if v >= beta {
				return v
			}
			if v > alpha {
				alpha = v
			}
		}
	}
	if best == -scoreInf {
		if passed {
			return s.pos.FinalScore()
		}
		s.pos.Pass()
		best = -s.solve4(-beta, -alpha, true)
		s.pos.Pass()
	}
	return best
}

// parityOrder returns move-try order for up to four squares: squares
// in odd-parity quadrants first, otherwise stable.
func parityOrder(sqs []int, el *othello.EmptyList) []int {
	var order [4]int
	n := 0
	for i, sq := range sqs {
		if el.Odd(sq) {
			order[n] = i
			n++
		}
	}
	for i, sq := range sqs {
		if !el.Odd(sq) {
			order[n] = i
			n++
		}
	}
	return order[:len(sqs)]
}

// shallow is the specialized alpha-beta for 5..shallowMax empties:
// parity ordering only, no transposition table.
func (s *Solver) shallow(alpha, beta int, passed bool) int {
	s.visit()
	var sqs [shallowMax]int
	n := 0
	for sq := s.el.First(); sq != othello.ListEnd; sq = s.el.Next(sq) {
		sqs[n] = sq
		n++
	}
	best := -scoreInf
	for pass := 0; pass < 2; pass++ {
		for _, sq := range sqs[:n] {
			if (pass == 0) != s.el.Odd(sq) {
				continue
			}
			f := othello.Flips(s.pos.Mover, s.pos.Opp, sq)
			if f == 0 {
				continue
			}
			s.pos.Play(sq, f)
			s.el.Remove(sq)
			var v int
			if n-1 == 4 {
				v = -s.solve4(-beta, -alpha, false)
			} else {
				v = -s.shallow(-beta, -alpha, false)
			}
			s.el.Restore(sq)
			s.pos.Unplay(sq, f)
			if v > best {
				best = v
				if v >= beta {
					return v
				}
				if v > alpha {
					alpha = v
				}
			}
		}
	}
	if best == -scoreInf {
		if passed {
			return s.pos.FinalScore()
		}
		s.pos.Pass()
		best = -s.shallow(-beta, -alpha, true)
		s.pos.Pass()
	}
	return best
}

// small dispatches the closed-form kernels for at most four empties.
func (s *Solver) small(alpha, beta int) int {
	switch s.el.Count() {
	case 0:
		s.visit()
		return s.pos.FinalScore()
	case 1:
		return s.solve1At(s.el.First())
	case 2:
		a := s.el.First()
		return s.solve2At(a, s.el.Next(a), alpha, beta, false)
	case 3:
		a := s.el.First()
		b := s.el.Next(a)
		return s.solve3At(a, b, s.el.Next(b), alpha, beta, false)
	default:
		return s.solve4(alpha, beta, false)
	}
}
