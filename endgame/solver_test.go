package endgame

import (
	"context"
	"math/bits"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"github.com/verdile/desdemona/othello"
	"github.com/verdile/desdemona/ttable"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

// bruteForce is the reference negamax over the full subtree, no
// pruning, no ordering.
func bruteForce(p othello.Position, passed bool) int {
	moves := p.LegalMoves()
	if moves == 0 {
		if passed {
			return p.FinalScore()
		}
		return -bruteForce(p.Passed(), true)
	}
	best := -scoreInf
	for m := moves; m != 0; m &= m - 1 {
		sq := bits.TrailingZeros64(m)
		q := p
		q.Play(sq, othello.Flips(q.Mover, q.Opp, sq))
		if v := -bruteForce(q, false); v > best {
			best = v
		}
	}
	return best
}

// randomPosition plays random legal moves from the start until the
// given number of empties remain. ok is false if the game ended first.
func randomPosition(empties int) (othello.Position, bool) {
	p := othello.Start()
	for p.EmptyCount() > empties {
		moves := p.LegalMoves()
		if moves == 0 {
			p.Pass()
			if p.LegalMoves() == 0 {
				return p, false
			}
			continue
		}
		nth := frand.Intn(bits.OnesCount64(moves))
		for i := 0; i < nth; i++ {
			moves &= moves - 1
		}
		sq := bits.TrailingZeros64(moves)
		p.Play(sq, othello.Flips(p.Mover, p.Opp, sq))
	}
	return p, true
}

func newTestSolver() *Solver {
	return New(ttable.NewWithBuckets(1<<12), nil)
}

func TestFullBoardDiscCount(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	var p othello.Position
	p.Mover = 1<<33 - 1
	p.Opp = ^p.Mover
	is.Equal(s.Solve(context.Background(), p), 2)
	is.Equal(s.Solve(context.Background(), p.Passed()), -2)
}

func TestClosedFormsMatchBruteForce(t *testing.T) {
	s := newTestSolver()
	ctx := context.Background()
	for n := 1; n <= 4; n++ {
		found := 0
		for i := 0; i < 400 && found < 60; i++ {
			p, ok := randomPosition(n)
			if !ok || p.EmptyCount() != n {
				continue
			}
			found++
			want := bruteForce(p, false)
			require.Equal(t, want, s.Solve(ctx, p),
				"%d empties, board %s", n, p.BoardString(othello.Black))
		}
		require.Greater(t, found, 10, "too few test positions at %d empties", n)
	}
}

func TestShallowMatchesBruteForce(t *testing.T) {
	s := newTestSolver()
	ctx := context.Background()
	for n := 5; n <= shallowMax; n++ {
		for i := 0; i < 40; i++ {
			p, ok := randomPosition(n)
			if !ok {
				continue
			}
			want := bruteForce(p, false)
			require.Equal(t, want, s.Solve(ctx, p),
				"%d empties, board %s", n, p.BoardString(othello.Black))
		}
	}
}

func TestDeepSolveMatchesBruteForce(t *testing.T) {
	if testing.Short() {
		t.Skip("brute-force cross-check is slow")
	}
	s := newTestSolver()
	ctx := context.Background()
	for _, n := range []int{8, 9} {
		for i := 0; i < 10; i++ {
			p, ok := randomPosition(n)
			if !ok {
				continue
			}
			want := bruteForce(p, false)
			require.Equal(t, want, s.Solve(ctx, p),
				"%d empties, board %s", n, p.BoardString(othello.Black))
		}
	}
}

func TestPassReturnsNegatedOpponentScore(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	s2 := newTestSolver()
	ctx := context.Background()
	found := 0
	for i := 0; i < 2000 && found < 5; i++ {
		p, ok := randomPosition(6)
		if !ok || p.LegalMoves() != 0 {
			continue
		}
		if othello.Moves(p.Opp, p.Mover) == 0 {
			continue
		}
		found++
		is.Equal(s.Solve(ctx, p), -s2.Solve(ctx, p.Passed()))
	}
	if found == 0 {
		t.Skip("no pass positions sampled")
	}
}

func TestSolveIdempotentAcrossRuns(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		p, ok := randomPosition(10)
		if !ok {
			continue
		}
		a := newTestSolver().Solve(ctx, p)
		b := newTestSolver().Solve(ctx, p)
		is.Equal(a, b)
	}
}

func TestSolveWindowBounds(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		p, ok := randomPosition(8)
		if !ok {
			continue
		}
		exact := newTestSolver().Solve(ctx, p)
		for _, w := range [][2]int{{-2, 2}, {exact - 1, exact + 1}, {-64, 0}, {0, 64}} {
			alpha, beta := w[0], w[1]
			got := newTestSolver().SolveWindow(ctx, p, alpha, beta)
			switch {
			case exact <= alpha:
				require.LessOrEqual(t, got, alpha, "fail low must stay at or under alpha")
			case exact >= beta:
				require.GreaterOrEqual(t, got, beta, "fail high must stay at or over beta")
			default:
				require.Equal(t, exact, got, "window (%d,%d)", alpha, beta)
			}
		}
	}
}

func TestNodeCounting(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	p, _ := randomPosition(8)
	s.Solve(context.Background(), p)
	is.True(s.Nodes() > 0)
}
