package search

import (
	"context"
	"sync"

	"github.com/verdile/desdemona/othello"
)

// splitDepthMin is the shallowest node worth handing to another
// worker; below it the split bookkeeping costs more than the subtree.
const splitDepthMin = 5

// coordinator hands the later siblings of a null-window node to idle
// workers once the eldest brother has been searched serially. Nodes
// are offered on a bounded channel; a full channel means everyone is
// busy and the owner just keeps searching alone.
type coordinator struct {
	enabled bool
	tasks   chan *splitNode
}

func newCoordinator(workers int) *coordinator {
	return &coordinator{
		enabled: workers > 1,
		tasks:   make(chan *splitNode, workers),
	}
}

func (c *coordinator) canSplit(depth, remaining int) bool {
	return c != nil && c.enabled && depth >= splitDepthMin && remaining >= 2
}

// splitNode is a null-window node whose remaining siblings are being
// searched by several workers. All mutable fields are guarded by mu;
// cancel carries a sibling cutoff to everyone still searching.
type splitNode struct {
	pos   othello.Position
	depth int
	alpha int
	beta  int

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	mu       sync.Mutex
	moves    []scoredMove
	next     int
	best     int
	bestMove int
	cut      bool
	sealed   bool
	running  int
}

func (c *coordinator) split(ctx context.Context, w *worker, depth, alpha, beta, best, bestMove int, moves []scoredMove) *splitNode {
	nodeCtx, cancel := context.WithCancelCause(ctx)
	n := &splitNode{
		pos:      w.pos,
		depth:    depth,
		alpha:    alpha,
		beta:     beta,
		ctx:      nodeCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		moves:    moves,
		best:     best,
		bestMove: bestMove,
	}
	select {
	case c.tasks <- n:
		return n
	default:
		cancel(nil)
		return nil
	}
}

// drain searches remaining siblings of n until the node runs out of
// moves or a sibling fails high. The calling worker must be standing
// on n.pos.
func (w *worker) drain(n *splitNode) {
	n.mu.Lock()
	n.running++
	for !n.cut && n.next < len(n.moves) {
		mv := n.moves[n.next]
		n.next++
		n.mu.Unlock()

		w.play(mv.sq, mv.flips)
		v := -w.nwsMid(n.ctx, n.depth-1, -n.beta)
		w.unplay(mv.sq, mv.flips)

		n.mu.Lock()
		if n.cut {
			break
		}
		if v > n.best {
			n.best = v
			n.bestMove = mv.sq
			if v >= n.beta {
				n.cut = true
				n.cancel(errSiblingCutoff)
			}
		}
	}
	n.running--
	if n.running == 0 && n.sealed {
		close(n.done)
	}
	n.mu.Unlock()
}

// wait blocks the owning worker until every helper has left n. An
// owner with nothing to do helps on other split nodes instead of
// spinning.
func (c *coordinator) wait(n *splitNode, w *worker) {
	defer n.cancel(nil)
	n.mu.Lock()
	n.sealed = true
	if n.running == 0 {
		n.mu.Unlock()
		// No helper ever claimed the node; its queue entry is still
		// occupying a split slot. Pull it back out.
		c.unqueue(n)
		return
	}
	n.mu.Unlock()
	for {
		select {
		case <-n.done:
			return
		case m := <-c.tasks:
			c.help(m, w.e)
		}
	}
}

// unqueue removes n from the task queue if it is still sitting there
// unclaimed. Other nodes pulled while looking are pushed back; one
// that cannot be pushed back is dropped, which is safe because every
// owner drains its own node with or without help.
func (c *coordinator) unqueue(n *splitNode) {
	for i := 0; i < cap(c.tasks); i++ {
		select {
		case m := <-c.tasks:
			if m == n {
				return
			}
			select {
			case c.tasks <- m:
			default:
				return
			}
		default:
			return
		}
	}
}

// help searches siblings of m with a throwaway worker built from the
// split position.
func (c *coordinator) help(m *splitNode, e *Engine) {
	m.mu.Lock()
	if m.cut || m.next >= len(m.moves) {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	hw := e.newWorker(-1, m.pos)
	hw.drain(m)
}

// serve is the helper loop run by each extra search thread. It exits
// when the run context ends; the task channel is never closed.
func (c *coordinator) serve(ctx context.Context, e *Engine) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-c.tasks:
			c.help(n, e)
		}
	}
}
