package search

import (
	"context"
	"errors"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/verdile/desdemona/eval"
	"github.com/verdile/desdemona/othello"
	"github.com/verdile/desdemona/ttable"
)

var (
	// ErrStopRequested is the cancellation cause set by Stop.
	ErrStopRequested = errors.New("search stopped on request")
	// ErrTimeout is the cancellation cause set when the time budget
	// runs out.
	ErrTimeout = errors.New("search time budget exhausted")
	// errSiblingCutoff aborts the helpers of a split node whose bound
	// has already been proven.
	errSiblingCutoff = errors.New("sibling produced a cutoff")

	// ErrNoPosition is returned by Run before SetPosition.
	ErrNoPosition = errors.New("no position set")
)

// Engine drives iterative-deepening searches over a shared
// transposition table. Configure it, then call Run; Result and Stop
// are safe from other goroutines while Run is in flight.
type Engine struct {
	tt   *ttable.Table
	eval *eval.Positional

	pos    othello.Position
	hasPos bool

	depth       int
	selectivity int
	budget      time.Duration
	threads     int
	multiPV     int

	observer         func(Result)
	observerMinDepth int

	coord *coordinator
	nodes atomic.Uint64

	mu      sync.Mutex
	result  Result
	stop    context.CancelCauseFunc
	started time.Time
}

func NewEngine(tt *ttable.Table, ev *eval.Positional) *Engine {
	return &Engine{
		tt:          tt,
		eval:        ev,
		depth:       24,
		selectivity: ttable.SelectivityNone,
		threads:     1,
		multiPV:     1,
	}
}

func (e *Engine) SetPosition(p othello.Position) {
	e.pos = p
	e.hasPos = true
}

// SetLevel bounds the search: depth in plies, selectivity 0 (fastest)
// through 5 (exact).
func (e *Engine) SetLevel(depth, selectivity int) {
	if depth < 1 {
		depth = 1
	}
	if selectivity < 0 {
		selectivity = 0
	}
	if selectivity > ttable.SelectivityNone {
		selectivity = ttable.SelectivityNone
	}
	e.depth = depth
	e.selectivity = selectivity
}

func (e *Engine) SetTimeBudget(d time.Duration) { e.budget = d }

func (e *Engine) SetThreads(n int) {
	if n < 1 {
		n = 1
	}
	e.threads = n
}

// SetMultiPV keeps the k best root moves fully scored instead of just
// the single best.
func (e *Engine) SetMultiPV(k int) {
	if k < 1 {
		k = 1
	}
	e.multiPV = k
}

// OnProgress registers fn to receive every improved Result found at
// minDepth or deeper. fn runs on the search goroutine; keep it cheap.
func (e *Engine) OnProgress(minDepth int, fn func(Result)) {
	e.observerMinDepth = minDepth
	e.observer = fn
}

// Stop cancels a running search. The search returns its best result
// so far, flagged incomplete.
func (e *Engine) Stop() {
	e.mu.Lock()
	stop := e.stop
	e.mu.Unlock()
	if stop != nil {
		stop(ErrStopRequested)
	}
}

// Result returns the latest published snapshot.
func (e *Engine) Result() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

func (e *Engine) publish(r Result) {
	e.mu.Lock()
	e.result = r
	e.mu.Unlock()
	if e.observer != nil && r.Depth >= e.observerMinDepth {
		e.observer(r)
	}
}

type rootMove struct {
	sq    int
	flips uint64
	score int
}

func (e *Engine) rootMoves() []rootMove {
	moves := e.pos.LegalMoves()
	rms := make([]rootMove, 0, bits.OnesCount64(moves))
	for m := moves; m != 0; m &= m - 1 {
		sq := bits.TrailingZeros64(m)
		rms = append(rms, rootMove{
			sq:    sq,
			flips: othello.Flips(e.pos.Mover, e.pos.Opp, sq),
			score: -othello.SquarePriority(sq),
		})
	}
	return rms
}

// Run searches the configured position and returns the final Result.
// A timeout or Stop does not error; it marks the Result incomplete.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if !e.hasPos {
		return Result{}, ErrNoPosition
	}
	if e.pos.GameOver() {
		r := Result{Move: othello.NoMove, Score: e.pos.FinalScore(), Incomplete: false}
		e.publish(r)
		return r, nil
	}
	if e.pos.LegalMoves() == 0 {
		// Forced pass: score the opponent's position and negate.
		saved := e.pos
		e.pos.Pass()
		r, err := e.Run(ctx)
		e.pos = saved
		if err != nil {
			return Result{}, err
		}
		r.Move = othello.Pass
		r.Score = -r.Score
		r.PV = append([]int{othello.Pass}, r.PV...)
		e.publish(r)
		return r, nil
	}

	e.tt.NewSearch()
	e.nodes.Store(0)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if e.budget > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeoutCause(runCtx, e.budget, ErrTimeout)
		defer tcancel()
	}
	e.mu.Lock()
	e.stop = cancel
	e.started = time.Now()
	e.mu.Unlock()

	e.coord = newCoordinator(e.threads)
	var g errgroup.Group
	if e.coord.enabled {
		for i := 1; i < e.threads; i++ {
			g.Go(func() error { return e.coord.serve(runCtx, e) })
		}
	}

	ticker := time.NewTicker(time.Second)
	tickDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-tickDone:
				return
			case <-ticker.C:
				elapsed := time.Since(e.started).Seconds()
				n := e.nodes.Load()
				log.Debug().Uint64("nodes", n).
					Float64("nps", float64(n)/elapsed).
					Msg("search-progress")
			}
		}
	}()

	w := e.newWorker(0, e.pos)
	rms := e.rootMoves()
	empties := e.pos.EmptyCount()
	maxDepth := e.depth
	if maxDepth > empties {
		maxDepth = empties
	}

	sortRootMoves(rms)
	final := Result{Move: rms[0].sq, Selectivity: e.selectivity}
	startDepth := 2
	if maxDepth < startDepth {
		startDepth = maxDepth
	}
	for d := startDepth; d <= maxDepth; d++ {
		if d >= empties {
			d = empties
		}
		sortRootMoves(rms)
		r, ok := e.iteration(runCtx, w, rms, d)
		if !ok {
			break
		}
		final = r
		if d >= empties {
			break
		}
	}

	interrupted := runCtx.Err() != nil
	if !interrupted {
		e.verifyPV(runCtx, w, &final)
	}
	cancel(nil)
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("search-worker-failed")
	}
	e.coord = nil
	ticker.Stop()
	close(tickDone)
	final.Nodes = e.nodes.Load()
	final.Elapsed = time.Since(e.started)
	final.Incomplete = interrupted
	e.publish(final)

	e.mu.Lock()
	e.stop = nil
	e.mu.Unlock()
	return final, nil
}

func sortRootMoves(rms []rootMove) {
	for i := 1; i < len(rms); i++ {
		rm := rms[i]
		j := i - 1
		for j >= 0 && rms[j].score < rm.score {
			rms[j+1] = rms[j]
			j--
		}
		rms[j+1] = rm
	}
}

// iteration runs one depth of the deepening loop. It returns false
// when the search was interrupted and the iteration's scores cannot
// be trusted.
func (e *Engine) iteration(ctx context.Context, w *worker, rms []rootMove, d int) (Result, bool) {
	best, bestMove := -scoreInf, othello.NoMove
	var bestPV PVLine
	var childPV PVLine
	scores := make([]int, 0, len(rms))

	lo := -scoreInf
	for i := range rms {
		if ctx.Err() != nil {
			return Result{}, false
		}
		w.play(rms[i].sq, rms[i].flips)
		childPV.Clear()
		var v int
		if i == 0 || lo == -scoreInf {
			v = -w.pvsMid(ctx, d-1, -scoreInf, -lo, &childPV)
		} else {
			v = -w.nwsMid(ctx, d-1, -lo-1)
			if v > lo {
				childPV.Clear()
				v = -w.pvsMid(ctx, d-1, -scoreInf, -lo, &childPV)
			}
		}
		w.unplay(rms[i].sq, rms[i].flips)
		if ctx.Err() != nil {
			return Result{}, false
		}
		rms[i].score = v
		scores = append(scores, v)
		if v > best {
			best = v
			bestMove = rms[i].sq
			bestPV.Update(rms[i].sq, childPV, v)
			e.publish(Result{
				Move:        bestMove,
				Score:       best,
				Depth:       d,
				Selectivity: e.selectivity,
				PV:          append([]int(nil), bestPV.Moves...),
				Nodes:       e.nodes.Load(),
				Elapsed:     time.Since(e.started),
			})
		}
		// The window only closes behind the k-th best score so the
		// top-k root moves all get exact values.
		if a := kthBest(scores, e.multiPV); a > lo {
			lo = a
		}
	}
	return Result{
		Move:        bestMove,
		Score:       best,
		Depth:       d,
		Selectivity: e.selectivity,
		PV:          append([]int(nil), bestPV.Moves...),
		Nodes:       e.nodes.Load(),
		Elapsed:     time.Since(e.started),
	}, true
}

func kthBest(scores []int, k int) int {
	if len(scores) < k {
		return -scoreInf
	}
	s := append([]int(nil), scores...)
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] < v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
	return s[k-1]
}

// verifyPV walks the reported line move by move. Transposition
// cutoffs can leave a stale tail; an illegal continuation is dropped
// and the line regrown with one narrow re-search.
func (e *Engine) verifyPV(ctx context.Context, w *worker, r *Result) {
	p := e.pos
	for i, sq := range r.PV {
		if sq == othello.Pass {
			if p.LegalMoves() != 0 {
				r.PV = r.PV[:i]
				break
			}
			p.Pass()
			continue
		}
		if p.LegalMoves()&(1<<uint(sq)) == 0 {
			r.PV = r.PV[:i]
			break
		}
		p.Play(sq, othello.Flips(p.Mover, p.Opp, sq))
	}
	if len(r.PV) >= r.Depth || len(r.PV) == 0 {
		return
	}
	log.Warn().Str("pv", PVLine{Moves: r.PV, score: r.Score}.String()).
		Msg("pv-truncated-by-hash-cutoff")
	flips := othello.Flips(e.pos.Mover, e.pos.Opp, r.PV[0])
	w.play(r.PV[0], flips)
	var regrown PVLine
	v := -w.pvsMid(ctx, r.Depth-1, -r.Score-1, -r.Score+1, &regrown)
	w.unplay(r.PV[0], flips)
	if v == r.Score {
		r.PV = append(r.PV[:1], regrown.Moves...)
	}
}

// SolveFixed searches one position at a fixed depth, window and
// selectivity on a single worker, without deepening or publishing.
func (e *Engine) SolveFixed(ctx context.Context, pos othello.Position, alpha, beta, depth, sel int) int {
	w := e.newWorker(0, pos)
	w.sel = sel
	var pv PVLine
	return w.pvsMid(ctx, depth, alpha, beta, &pv)
}
