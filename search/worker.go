package search

import (
	"context"
	"math/bits"

	"github.com/verdile/desdemona/endgame"
	"github.com/verdile/desdemona/eval"
	"github.com/verdile/desdemona/othello"
)

const scoreInf = 65

type scoredMove struct {
	sq    int
	flips uint64
	score int
}

// worker owns one position instance and everything that mutates with
// it along a search path. Workers share the transposition table, the
// node counter and the coordinator; they never share a position.
type worker struct {
	id  int
	e   *Engine
	sel int

	pos othello.Position
	el  *othello.EmptyList
	ac  *eval.Accum

	endgame    *endgame.Solver
	localNodes uint64
}

func (e *Engine) newWorker(id int, pos othello.Position) *worker {
	w := &worker{
		id:  id,
		e:   e,
		sel: e.selectivity,
		pos: pos,
		el:  othello.NewEmptyList(pos),
		ac:  eval.NewAccum(e.eval),
	}
	w.ac.Reset(pos)
	w.endgame = endgame.New(e.tt, &e.nodes)
	return w
}

func (w *worker) visit() {
	w.localNodes++
	w.e.nodes.Add(1)
}

func (w *worker) ply() int {
	return 60 - w.pos.EmptyCount()
}

func (w *worker) play(sq int, flips uint64) {
	w.pos.Play(sq, flips)
	w.el.Remove(sq)
	w.ac.Update(sq, flips)
}

func (w *worker) unplay(sq int, flips uint64) {
	w.ac.Restore(sq, flips)
	w.el.Restore(sq)
	w.pos.Unplay(sq, flips)
}

func (w *worker) pass() {
	w.pos.Pass()
	w.ac.Pass()
}

// eval0 is the depth-0 leaf: a single static evaluation.
func (w *worker) eval0() int {
	return w.ac.Score(w.pos, w.ply())
}

// eval1 plays each move and evaluates in place, one ply of negamax
// over the evaluator.
func (w *worker) eval1(alpha, beta int, passed bool) int {
	w.visit()
	moves := w.pos.LegalMoves()
	if moves == 0 {
		if passed {
			return w.pos.FinalScore()
		}
		w.pass()
		v := -w.eval1(-beta, -alpha, true)
		w.pass()
		return v
	}
	best := -scoreInf
	for m := moves; m != 0; m &= m - 1 {
		sq := bits.TrailingZeros64(m)
		flips := othello.Flips(w.pos.Mover, w.pos.Opp, sq)
		w.play(sq, flips)
		v := -w.eval0()
		w.unplay(sq, flips)
		if v > best {
			best = v
			if v >= beta {
				return v
			}
		}
	}
	return best
}

// eval2 is the two-ply alpha-beta over the evaluator.
func (w *worker) eval2(alpha, beta int, passed bool) int {
	w.visit()
	moves := w.pos.LegalMoves()
	if moves == 0 {
		if passed {
			return w.pos.FinalScore()
		}
		w.pass()
		v := -w.eval2(-beta, -alpha, true)
		w.pass()
		return v
	}
	best := -scoreInf
	for m := moves; m != 0; m &= m - 1 {
		sq := bits.TrailingZeros64(m)
		flips := othello.Flips(w.pos.Mover, w.pos.Opp, sq)
		w.play(sq, flips)
		v := -w.eval1(-beta, -alpha, false)
		w.unplay(sq, flips)
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
	return best
}

func (w *worker) evalDepth(depth, alpha, beta int) int {
	switch depth {
	case 0:
		w.visit()
		return w.eval0()
	case 1:
		return w.eval1(alpha, beta, false)
	default:
		return w.eval2(alpha, beta, false)
	}
}

// solveEndgame hands the position to the exact solver once the
// remaining depth covers all empties.
func (w *worker) solveEndgame(ctx context.Context, alpha, beta int) int {
	a, b := alpha, beta
	if a < -64 {
		a = -64
	}
	if a > 63 {
		a = 63
	}
	if b > 64 {
		b = 64
	}
	if b <= a {
		b = a + 1
	}
	return w.endgame.SolveWindow(ctx, w.pos, a, b)
}

const (
	hashMoveBonus  = 1 << 20
	hashMove2Bonus = 1 << 19
	parityBonus    = 1 << 6
)

// orderMoves scores the legal moves best first: hash moves, then
// mobility denial, square priority and quadrant parity. The child
// probe used for ordering doubles as the enhanced transposition
// cutoff: when a child's stored bound already refutes beta the node is
// finished before any recursion.
func (w *worker) orderMoves(depth, beta int, moves uint64, hashMove, hashMove2 int) ([]scoredMove, int, bool) {
	ml := make([]scoredMove, 0, bits.OnesCount64(moves))
	for m := moves; m != 0; m &= m - 1 {
		sq := bits.TrailingZeros64(m)
		flips := othello.Flips(w.pos.Mover, w.pos.Opp, sq)
		sm := scoredMove{sq: sq, flips: flips}

		w.pos.Play(sq, flips)
		if e, ok := w.e.tt.Lookup(w.pos.Hash()); ok &&
			e.Depth >= depth-1 && e.Selectivity >= w.sel && -e.Upper >= beta {
			w.pos.Unplay(sq, flips)
			return nil, -e.Upper, true
		}
		sm.score = -(bits.OnesCount64(w.pos.LegalMoves()) << 7)
		w.pos.Unplay(sq, flips)

		sm.score -= othello.SquarePriority(sq)
		if w.el.Odd(sq) {
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

// nwsMid is the null-window midgame search at (alpha, alpha+1):
// stability cutoff, transposition cutoff, ProbCut, then hash-ordered
// moves, splitting the tail siblings onto idle workers when the
// coordinator allows it.
func (w *worker) nwsMid(ctx context.Context, depth, alpha int) int {
	beta := alpha + 1
	if ctx.Err() != nil {
		return alpha
	}
	empties := w.pos.EmptyCount()
	if depth >= empties {
		return w.solveEndgame(ctx, alpha, beta)
	}
	if depth <= 2 {
		return w.evalDepth(depth, alpha, beta)
	}
	w.visit()

	if b := othello.StabilityBound(w.pos); b <= alpha {
		return b
	}

	hash := w.pos.Hash()
	hashMove, hashMove2 := othello.NoMove, othello.NoMove
	if e, ok := w.e.tt.Lookup(hash); ok && e.Depth >= depth && e.Selectivity >= w.sel {
		if e.Lower >= beta {
			return e.Lower
		}
		if e.Upper <= alpha {
			return e.Upper
		}
		hashMove, hashMove2 = e.Move, e.Move2
	}

	if v, ok := w.probcut(ctx, depth, alpha, beta); ok {
		return v
	}

	moves := w.pos.LegalMoves()
	if moves == 0 {
		if othello.Moves(w.pos.Opp, w.pos.Mover) == 0 {
			return w.pos.FinalScore()
		}
		w.pass()
		v := -w.nwsMid(ctx, depth, -beta)
		w.pass()
		return v
	}

	before := w.localNodes
	ml, etc, cut := w.orderMoves(depth, beta, moves, hashMove, hashMove2)
	if cut {
		return etc
	}

	best, bestMove := -scoreInf, othello.NoMove
	for i := range ml {
		if i == 1 && best < beta && w.e.coord.canSplit(depth, len(ml)-i) {
			if n := w.e.coord.split(ctx, w, depth, alpha, beta, best, bestMove, ml[i:]); n != nil {
				w.drain(n)
				w.e.coord.wait(n, w)
				best, bestMove = n.best, n.bestMove
				break
			}
		}
		w.play(ml[i].sq, ml[i].flips)
		v := -w.nwsMid(ctx, depth-1, -beta)
		w.unplay(ml[i].sq, ml[i].flips)
		if v > best {
			best = v
			bestMove = ml[i].sq
			if v >= beta {
				break
			}
		}
	}
	if ctx.Err() == nil {
		cost := bits.Len64(w.localNodes - before)
		w.e.tt.Store(hash, depth, w.sel, cost, alpha, beta, best, bestMove)
	}
	return best
}

// pvsMid searches a wide window: the first move gets the full window,
// later moves a null window with a re-search only when they land
// strictly inside it.
func (w *worker) pvsMid(ctx context.Context, depth, alpha, beta int, pv *PVLine) int {
	if beta-alpha == 1 {
		return w.nwsMid(ctx, depth, alpha)
	}
	if ctx.Err() != nil {
		return alpha
	}
	empties := w.pos.EmptyCount()
	if depth >= empties {
		return w.solveEndgame(ctx, alpha, beta)
	}
	if depth <= 2 {
		return w.evalDepth(depth, alpha, beta)
	}
	w.visit()

	hash := w.pos.Hash()
	hashMove, hashMove2 := othello.NoMove, othello.NoMove
	if e, ok := w.e.tt.Lookup(hash); ok && e.Depth >= depth && e.Selectivity >= w.sel {
		// Cutting off here can truncate the principal variation; the
		// value is still correct and the driver re-checks the PV.
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

	moves := w.pos.LegalMoves()
	if moves == 0 {
		if othello.Moves(w.pos.Opp, w.pos.Mover) == 0 {
			return w.pos.FinalScore()
		}
		var childPV PVLine
		w.pass()
		v := -w.pvsMid(ctx, depth, -beta, -alpha, &childPV)
		w.pass()
		pv.Update(othello.Pass, childPV, v)
		return v
	}

	before := w.localNodes
	ml, etc, cut := w.orderMoves(depth, beta, moves, hashMove, hashMove2)
	if cut {
		return etc
	}

	best, bestMove := -scoreInf, othello.NoMove
	lo := alpha
	var childPV PVLine
	for i := range ml {
		w.play(ml[i].sq, ml[i].flips)
		var v int
		if i == 0 {
			v = -w.pvsMid(ctx, depth-1, -beta, -lo, &childPV)
		} else {
			v = -w.nwsMid(ctx, depth-1, -lo-1)
			if v > lo && v < beta {
				childPV.Clear()
				v = -w.pvsMid(ctx, depth-1, -beta, -lo, &childPV)
			}
		}
		w.unplay(ml[i].sq, ml[i].flips)
		if v > best {
			best = v
			bestMove = ml[i].sq
			pv.Update(ml[i].sq, childPV, v)
			if v >= beta {
				break
			}
			if v > lo {
				lo = v
			}
		}
		childPV.Clear()
	}
	if ctx.Err() == nil {
		cost := bits.Len64(w.localNodes - before)
		w.e.tt.Store(hash, depth, w.sel, cost, alpha, beta, best, bestMove)
	}
	return best
}
