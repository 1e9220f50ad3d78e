package eval

import (
	"math/bits"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"lukechampine.com/frand"

	"github.com/verdile/desdemona/othello"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func TestScoreAntisymmetric(t *testing.T) {
	is := is.New(t)
	e := NewPositional()
	p := othello.Start()
	// The starting position is symmetric between the players.
	is.Equal(e.Score(p, 0), -e.Score(p.Passed(), 0))
	is.Equal(e.Score(p, 0), 0)
}

func TestScoreBounded(t *testing.T) {
	e := NewPositional()
	p := othello.Position{Mover: ^uint64(0) &^ 0xff, Opp: 0}
	if s := e.Score(p, 0); s > ScoreMax || s < -ScoreMax {
		t.Fatalf("score %d out of bounds", s)
	}
}

func TestAccumMatchesFullRecompute(t *testing.T) {
	is := is.New(t)
	e := NewPositional()
	a := NewAccum(e)
	p := othello.Start()
	a.Reset(p)

	type undo struct {
		sq    int
		flips uint64
	}
	var path []undo
	for step := 0; step < 40 && !p.GameOver(); step++ {
		moves := p.LegalMoves()
		if moves == 0 {
			break
		}
		nth := frand.Intn(bits.OnesCount64(moves))
		for i := 0; i < nth; i++ {
			moves &= moves - 1
		}
		sq := bits.TrailingZeros64(moves)
		flips := othello.Flips(p.Mover, p.Opp, sq)
		p.Play(sq, flips)
		a.Update(sq, flips)
		path = append(path, undo{sq, flips})

		is.Equal(a.Score(p, step), e.Score(p, step))
	}
	// Unwind and verify the accumulator restores exactly.
	for i := len(path) - 1; i >= 0; i-- {
		p.Unplay(path[i].sq, path[i].flips)
		a.Restore(path[i].sq, path[i].flips)
		is.Equal(a.Score(p, i), e.Score(p, i))
	}
}
