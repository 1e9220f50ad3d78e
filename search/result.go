package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/verdile/desdemona/othello"
)

// Result is a snapshot of the best line found so far. The engine
// publishes one after every completed root sibling that improves the
// best move; the final Result is returned from Run.
type Result struct {
	Move        int
	Score       int
	Depth       int
	Selectivity int
	PV          []int
	Nodes       uint64
	Elapsed     time.Duration
	// Incomplete marks a result cut short by a timeout or stop
	// request; the score is the best found, not necessarily the best
	// possible at the requested level.
	Incomplete bool
}

func (r Result) String() string {
	pv := strings.Join(lo.Map(r.PV, func(sq int, _ int) string {
		return othello.SquareString(sq)
	}), " ")
	s := fmt.Sprintf("%s %+d depth %d@%d nodes %d in %v [%s]",
		othello.SquareString(r.Move), r.Score, r.Depth, r.Selectivity,
		r.Nodes, r.Elapsed.Round(time.Millisecond), pv)
	if r.Incomplete {
		s += " (incomplete)"
	}
	return s
}
