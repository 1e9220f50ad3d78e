package othello

import (
	"math/bits"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"lukechampine.com/frand"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

// slowFlips walks each of the eight directions square by square; it is
// the reference the bitboard kernel is checked against.
func slowFlips(mover, opp uint64, sq int) uint64 {
	dirs := [8][2]int{
		{0, 1}, {0, -1}, {1, 0}, {-1, 0},
		{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
	}
	r0, f0 := sq/8, sq%8
	var flips uint64
	for _, d := range dirs {
		var run uint64
		r, f := r0+d[0], f0+d[1]
		for r >= 0 && r < 8 && f >= 0 && f < 8 {
			x := uint64(1) << uint(r*8+f)
			if opp&x != 0 {
				run |= x
			} else if mover&x != 0 {
				flips |= run
				break
			} else {
				break
			}
			r += d[0]
			f += d[1]
		}
	}
	return flips
}

func slowMoves(mover, opp uint64) uint64 {
	var moves uint64
	empty := ^(mover | opp)
	for sq := 0; sq < 64; sq++ {
		if empty&(1<<uint(sq)) != 0 && slowFlips(mover, opp, sq) != 0 {
			moves |= 1 << uint(sq)
		}
	}
	return moves
}

// randomPosition plays random legal moves from the start until the
// given number of empties remain (or the game ends first).
func randomPosition(empties int) (Position, bool) {
	p := Start()
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
		p.Play(sq, Flips(p.Mover, p.Opp, sq))
	}
	return p, true
}

func TestStartPosition(t *testing.T) {
	is := is.New(t)
	p := Start()
	is.Equal(p.EmptyCount(), 60)
	is.Equal(p.DiscDiff(), 0)
	is.Equal(p.LegalMoves(), uint64(1<<D3|1<<C4|1<<F5|1<<E6))
}

func TestFlipsMatchReference(t *testing.T) {
	for i := 0; i < 500; i++ {
		p, _ := randomPosition(frand.Intn(55) + 4)
		if got, want := p.LegalMoves(), slowMoves(p.Mover, p.Opp); got != want {
			t.Fatalf("moves mismatch on %s: got %x want %x", p.BoardString(Black), got, want)
		}
		for m := p.LegalMoves(); m != 0; m &= m - 1 {
			sq := bits.TrailingZeros64(m)
			assert.Equal(t, slowFlips(p.Mover, p.Opp, sq), Flips(p.Mover, p.Opp, sq),
				"flips mismatch at %s", SquareString(sq))
		}
	}
}

func TestPlayUnplayRoundTrip(t *testing.T) {
	is := is.New(t)
	for i := 0; i < 200; i++ {
		p, _ := randomPosition(frand.Intn(50) + 10)
		moves := p.LegalMoves()
		if moves == 0 {
			continue
		}
		before := p
		sq := bits.TrailingZeros64(moves)
		flips := Flips(p.Mover, p.Opp, sq)
		p.Play(sq, flips)
		is.True(p.Mover&p.Opp == 0)
		p.Unplay(sq, flips)
		is.Equal(p, before)
	}
}

func TestFinalScore(t *testing.T) {
	is := is.New(t)
	// A full board split 33/31.
	var p Position
	p.Mover = 1<<33 - 1 // squares 0..32, 33 discs
	p.Opp = ^p.Mover
	is.Equal(p.FinalScore(), 2)
	is.Equal(p.Passed().FinalScore(), -2)

	// Empties go to the winner; a draw stays a draw.
	p = Position{Mover: 0xff, Opp: 0xff00}
	is.Equal(p.FinalScore(), 0)
	p = Position{Mover: 0xffff, Opp: 0xff0000}
	is.Equal(p.FinalScore(), 8+40)
}

func TestPassAndGameOver(t *testing.T) {
	is := is.New(t)
	p := Start()
	is.True(!p.GameOver())
	q := p.Passed()
	is.Equal(q.Mover, p.Opp)
	is.Equal(q.Opp, p.Mover)
}

func TestNotationRoundTrip(t *testing.T) {
	is := is.New(t)
	for sq := 0; sq < 64; sq++ {
		got, err := ParseSquare(SquareString(sq))
		is.NoErr(err)
		is.Equal(got, sq)
	}
	sq, err := ParseSquare("PA")
	is.NoErr(err)
	is.Equal(sq, Pass)
	_, err = ParseSquare("z9")
	is.True(err != nil)

	p := Start()
	q, err := ParseBoard(p.BoardString(Black), Black)
	is.NoErr(err)
	is.Equal(q, p)
	// Parsing from White's point of view swaps the sets.
	w, err := ParseBoard(p.BoardString(Black), White)
	is.NoErr(err)
	is.Equal(w, p.Passed())
}

func TestHashDistinguishesPositions(t *testing.T) {
	is := is.New(t)
	p := Start()
	is.True(p.Hash() != p.Passed().Hash())
	seen := make(map[uint64]Position)
	for i := 0; i < 200; i++ {
		q, _ := randomPosition(frand.Intn(40) + 10)
		h := q.Hash()
		if prev, ok := seen[h]; ok {
			is.Equal(prev, q)
		}
		seen[h] = q
	}
}
