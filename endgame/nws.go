package endgame

import (
	"context"
	"math/bits"

	"github.com/verdile/desdemona/othello"
	"github.com/verdile/desdemona/ttable"
)

type scoredMove struct {
	sq    int
	flips uint64
	score int
}

const (
	hashMoveBonus  = 1 << 20
	hashMove2Bonus = 1 << 19
	parityBonus    = 1 << 6
)

// orderMoves scores and sorts the legal moves of the current position,
// best first. While a move is applied for scoring, the child entry in
// the transposition table is probed for an enhanced transposition
// cutoff: a child whose stored upper bound already refutes beta ends
// the node without any recursion.
func (s *Solver) orderMoves(moves uint64, n, beta, hashMove, hashMove2 int) ([]scoredMove, int, bool) {
	ml := make([]scoredMove, 0, bits.OnesCount64(moves))
	for m := moves; m != 0; m &= m - 1 {
		sq := bits.TrailingZeros64(m)
		flips := othello.Flips(s.pos.Mover, s.pos.Opp, sq)
		sm := scoredMove{sq: sq, flips: flips}

		s.pos.Play(sq, flips)
		if e, ok := s.tt.Lookup(s.pos.Hash()); ok &&
			e.Selectivity == ttable.SelectivityNone && e.Depth >= n-1 && -e.Upper >= beta {
			s.pos.Unplay(sq, flips)
			return nil, -e.Upper, true
		}
		// Mobility denial dominates the ordering.
		sm.score = -(bits.OnesCount64(s.pos.LegalMoves()) << 7)
		s.pos.Unplay(sq, flips)

		sm.score -= othello.SquarePriority(sq)
		if s.el.Odd(sq) {
			sm.score += parityBonus
		}
		switch sq {
		case hashMove:
			sm.score += hashMoveBonus
		case hashMove2:
			sm.score += hashMove2Bonus
		}
		ml = append(ml, sm)
	}
	// Insertion sort, descending score; move lists are short.
	for i := 1; i < len(ml); i++ {
		sm := ml[i]
		j := i - 1
		for j >= 0 && ml[j].score < sm.score {
			ml[j+1] = ml[j]
			j--
		}
		ml[j+1] = sm
	}
	return ml, 0, false
}

// nws proves whether the exact score exceeds alpha, searching the
// null window (alpha, alpha+1). Used for all non-principal endgame
// nodes above the shallow threshold.
func (s *Solver) nws(ctx context.Context, alpha int) int {
	beta := alpha + 1
	n := s.el.Count()
	if n <= shallowMax {
		return s.shallow(alpha, beta, false)
	}
	if ctx.Err() != nil {
		return alpha
	}
	s.visit()

	if b := othello.StabilityBound(s.pos); b <= alpha {
		return b
	}

	hash := s.pos.Hash()
	hashMove, hashMove2 := othello.NoMove, othello.NoMove
	if e, ok := s.tt.Lookup(hash); ok && e.Selectivity == ttable.SelectivityNone && e.Depth >= n {
		if e.Lower >= beta {
			return e.Lower
		}
		if e.Upper <= alpha {
			return e.Upper
		}
		hashMove, hashMove2 = e.Move, e.Move2
	}

	moves := s.pos.LegalMoves()
	if moves == 0 {
		if othello.Moves(s.pos.Opp, s.pos.Mover) == 0 {
			return s.pos.FinalScore()
		}
		s.pos.Pass()
		v := -s.nws(ctx, -beta)
		s.pos.Pass()
		return v
	}

	before := s.localNodes
	ml, etc, cut := s.orderMoves(moves, n, beta, hashMove, hashMove2)
	if cut {
		return etc
	}

	best, bestMove := -scoreInf, othello.NoMove
	for i := range ml {
		s.pos.Play(ml[i].sq, ml[i].flips)
		s.el.Remove(ml[i].sq)
		v := -s.nws(ctx, -beta)
		s.el.Restore(ml[i].sq)
		s.pos.Unplay(ml[i].sq, ml[i].flips)
		if v > best {
			best = v
			bestMove = ml[i].sq
			if v >= beta {
				break
			}
		}
	}
	if ctx.Err() == nil {
		cost := bits.Len64(s.localNodes - before)
		s.tt.Store(hash, n, ttable.SelectivityNone, cost, alpha, beta, best, bestMove)
	}
	return best
}

// pvs is the wide-window endgame search used at principal nodes: the
// first move gets the full window, the rest a null window with a
// re-search only when they land inside it.
func (s *Solver) pvs(ctx context.Context, alpha, beta int) int {
	n := s.el.Count()
	if n <= 4 {
		return s.small(alpha, beta)
	}
	if n <= shallowMax {
		return s.shallow(alpha, beta, false)
	}
	if beta-alpha == 1 {
		return s.nws(ctx, alpha)
	}
	if ctx.Err() != nil {
		return alpha
	}
	s.visit()

	hash := s.pos.Hash()
	hashMove, hashMove2 := othello.NoMove, othello.NoMove
	if e, ok := s.tt.Lookup(hash); ok && e.Selectivity == ttable.SelectivityNone && e.Depth >= n {
		if e.Lower >= beta {
			return e.Lower
		}
		if e.Upper <= alpha {
			return e.Upper
		}
		if e.Lower == e.Upper {
			return e.Lower
		}
		hashMove, hashMove2 = e.Move, e.Move2
	}

	moves := s.pos.LegalMoves()
	if moves == 0 {
		if othello.Moves(s.pos.Opp, s.pos.Mover) == 0 {
			return s.pos.FinalScore()
		}
		s.pos.Pass()
		v := -s.pvs(ctx, -beta, -alpha)
		s.pos.Pass()
		return v
	}

	before := s.localNodes
	ml, etc, cut := s.orderMoves(moves, n, beta, hashMove, hashMove2)
	if cut {
		return etc
	}

	best, bestMove := -scoreInf, othello.NoMove
	lo := alpha
	for i := range ml {
		s.pos.Play(ml[i].sq, ml[i].flips)
		s.el.Remove(ml[i].sq)
		var v int
		if i == 0 {
			v = -s.pvs(ctx, -beta, -lo)
		} else {
			v = -s.nws(ctx, -lo-1)
			if v > lo && v < beta {
				v = -s.pvs(ctx, -beta, -lo)
			}
		}
		s.el.Restore(ml[i].sq)
		s.pos.Unplay(ml[i].sq, ml[i].flips)
		if v > best {
			best = v
			bestMove = ml[i].sq
			if v >= beta {
				break
			}
			if v > lo {
				lo = v
			}
		}
	}
	if ctx.Err() == nil {
		cost := bits.Len64(s.localNodes - before)
		s.tt.Store(hash, n, ttable.SelectivityNone, cost, alpha, beta, best, bestMove)
	}
	return best
}
