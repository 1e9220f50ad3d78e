package search

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// probcutZ[s] is the one-sided z value for selectivity level s. Level
// 5 is exact search; the lower levels trade a growing chance of a
// wrong cutoff for a shallower confirming search.
var probcutZ [6]float64

func init() {
	n := distuv.Normal{Mu: 0, Sigma: 1}
	// Confidence levels chosen so the z values come out at 1.0, 1.1,
	// 1.5, 2.0 and 2.6.
	for s, conf := range [...]float64{0.8413, 0.8643, 0.9332, 0.9772, 0.9953} {
		probcutZ[s] = n.Quantile(conf)
	}
	probcutZ[5] = math.Inf(1)
}

// probcutSigma estimates the standard deviation of the error between
// a depth-d search and the confirming shallow search, in discs. The
// model grows with remaining depth and shrinks late in the game; the
// floor keeps the margin positive early on, when the linear model
// would otherwise go negative and prune harder at higher confidence.
func probcutSigma(depth, empties int) float64 {
	d := float64(depth)
	e := float64(empties)
	return math.Max(-0.10*e+0.35*d+3.2, 1.0)
}

// probcut tries to prove the null-window result with a reduced-depth
// search shifted by a confidence margin. A confirmed fail-high
// returns beta, a confirmed fail-low returns alpha; otherwise the
// full search proceeds.
func (w *worker) probcut(ctx context.Context, depth, alpha, beta int) (int, bool) {
	if w.sel >= len(probcutZ)-1 || depth < 5 {
		return 0, false
	}
	pcd := 2 * (depth / 4)
	margin := int(math.Ceil(probcutZ[w.sel] * probcutSigma(depth, w.pos.EmptyCount())))

	// Try the cheap side suggested by the static eval first.
	if w.eval0() >= beta {
		bound := beta + margin
		if bound < scoreInf && w.nwsMid(ctx, pcd, bound-1) >= bound {
			return beta, true
		}
	} else {
		bound := alpha - margin
		if bound > -scoreInf && w.nwsMid(ctx, pcd, bound) <= bound {
			return alpha, true
		}
	}
	return 0, false
}
