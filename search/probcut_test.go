package search

import (
	"math"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/require"
)

func TestProbcutZIncreasesWithSelectivity(t *testing.T) {
	is := is.New(t)
	is.True(math.Abs(probcutZ[0]-1.0) < 0.01)
	is.True(math.Abs(probcutZ[4]-2.6) < 0.01)
	for s := 1; s < len(probcutZ); s++ {
		is.True(probcutZ[s] > probcutZ[s-1])
	}
}

func TestProbcutSigmaPositive(t *testing.T) {
	for depth := 5; depth <= 24; depth++ {
		for empties := 6; empties <= 60; empties++ {
			require.GreaterOrEqual(t, probcutSigma(depth, empties), 1.0,
				"sigma at depth %d, %d empties", depth, empties)
		}
	}
}

// The margin must grow with confidence: an exact-leaning selectivity
// level may never prune on a looser bound than an aggressive one.
func TestProbcutMarginMonotone(t *testing.T) {
	for depth := 5; depth <= 24; depth++ {
		for empties := 6; empties <= 60; empties++ {
			sigma := probcutSigma(depth, empties)
			prev := 0
			for s := 0; s <= 4; s++ {
				margin := int(math.Ceil(probcutZ[s] * sigma))
				require.GreaterOrEqual(t, margin, 1,
					"selectivity %d, depth %d, %d empties", s, depth, empties)
				require.GreaterOrEqual(t, margin, prev,
					"selectivity %d, depth %d, %d empties", s, depth, empties)
				prev = margin
			}
		}
	}
}
