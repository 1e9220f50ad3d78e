package ttable

import (
	"os"
	"sync"
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

func TestPackUnpackRoundTrip(t *testing.T) {
	is := is.New(t)
	e := Entry{
		Lower: -12, Upper: 30, Move: 19, Move2: NoMove,
		Depth: 22, Selectivity: 3, Cost: 41, date: 7,
	}
	is.Equal(unpack(pack(e)), e)

	e = Entry{
		Lower: ScoreMin, Upper: ScoreMax, Move: NoMove, Move2: NoMove,
		Depth: 60, Selectivity: SelectivityNone, Cost: 255, date: 254,
	}
	is.Equal(unpack(pack(e)), e)
}

func TestStoreLookupRoundTrip(t *testing.T) {
	is := is.New(t)
	tt := NewWithBuckets(1 << 8)
	hash := frand.Uint64n(1<<63) + 1

	// Exact result inside the window: both bounds equal the score.
	tt.Store(hash, 10, SelectivityNone, 5, -10, 10, 4, 19)
	e, ok := tt.Lookup(hash)
	is.True(ok)
	is.Equal(e.Lower, 4)
	is.Equal(e.Upper, 4)
	is.Equal(e.Move, 19)
	is.Equal(e.Depth, 10)
	is.Equal(e.Selectivity, SelectivityNone)
	is.True(e.Lower <= e.Upper)

	_, ok = tt.Lookup(hash ^ 1)
	is.True(!ok)
}

func TestBoundsNarrowOnly(t *testing.T) {
	is := is.New(t)
	tt := NewWithBuckets(1 << 8)
	hash := uint64(0xabcdef12345)

	// Fail high at (0,1): lower bound 8.
	tt.Store(hash, 6, SelectivityNone, 3, 0, 1, 8, 12)
	// Fail low at (20,21) same depth: upper bound 15.
	tt.Store(hash, 6, SelectivityNone, 3, 20, 21, 15, NoMove)
	e, ok := tt.Lookup(hash)
	is.True(ok)
	is.Equal(e.Lower, 8)
	is.Equal(e.Upper, 15)
	is.Equal(e.Move, 12)
}

func TestDeeperSearchResetsBounds(t *testing.T) {
	is := is.New(t)
	tt := NewWithBuckets(1 << 8)
	hash := uint64(0x1234)

	tt.Store(hash, 6, SelectivityNone, 3, 0, 1, 8, 12)
	// A deeper search contradicting the old lower bound wins outright.
	tt.Store(hash, 8, SelectivityNone, 4, 0, 1, -2, NoMove)
	e, ok := tt.Lookup(hash)
	is.True(ok)
	is.Equal(e.Depth, 8)
	is.Equal(e.Upper, -2)
	is.Equal(e.Lower, ScoreMin)

	// A shallower store afterwards changes nothing.
	tt.Store(hash, 4, SelectivityNone, 2, -30, 30, 20, 7)
	e, _ = tt.Lookup(hash)
	is.Equal(e.Depth, 8)
	is.Equal(e.Upper, -2)
}

func TestSecondBestMoveRemembered(t *testing.T) {
	is := is.New(t)
	tt := NewWithBuckets(1 << 8)
	hash := uint64(0x77)
	tt.Store(hash, 6, SelectivityNone, 3, -64, 64, 10, 21)
	tt.Store(hash, 6, SelectivityNone, 3, -64, 64, 12, 35)
	e, ok := tt.Lookup(hash)
	is.True(ok)
	is.Equal(e.Move, 35)
	is.Equal(e.Move2, 21)
}

func TestEvictionPrefersLeastValuable(t *testing.T) {
	is := is.New(t)
	tt := NewWithBuckets(1) // a single bucket of NumWays ways
	// Fill the ways with distinct fingerprints at varying depths.
	depths := []int{12, 3, 9, 7}
	for i, d := range depths {
		tt.Store(uint64(i+1)<<13, d, SelectivityNone, 1, -64, 64, 0, NoMove)
	}
	// One more store evicts the depth-3 entry, everything else stays.
	tt.Store(uint64(99)<<13, 10, SelectivityNone, 1, -64, 64, 0, NoMove)
	_, ok := tt.Lookup(uint64(2) << 13)
	is.True(!ok)
	for _, k := range []uint64{1, 3, 4, 99} {
		_, ok := tt.Lookup(k << 13)
		is.True(ok)
	}
}

func TestStaleDateEvictedFirst(t *testing.T) {
	is := is.New(t)
	tt := NewWithBuckets(1)
	for i := uint64(1); i <= 4; i++ {
		tt.Store(i<<13, 8, SelectivityNone, 1, -64, 64, 0, NoMove)
	}
	tt.NewSearch()
	// Refresh all but the third entry under the new date.
	for _, i := range []uint64{1, 2, 4} {
		tt.Store(i<<13, 8, SelectivityNone, 1, -64, 64, 0, NoMove)
	}
	// Recency outranks depth: the stale way loses to a shallower store.
	tt.Store(uint64(9)<<13, 4, SelectivityNone, 1, -64, 64, 0, NoMove)
	_, ok := tt.Lookup(uint64(3) << 13)
	is.True(!ok)
	for _, i := range []uint64{1, 2, 4, 9} {
		_, ok := tt.Lookup(i << 13)
		is.True(ok)
	}
}

func TestTornEntryIsAMiss(t *testing.T) {
	is := is.New(t)
	tt := NewWithBuckets(1 << 4)
	hash := uint64(0xfeed)
	tt.Store(hash, 6, SelectivityNone, 3, -64, 64, 10, 21)

	// Corrupt the payload word without fixing the tag, simulating a
	// reader overlapping a concurrent writer.
	base := (hash & tt.mask) * NumWays
	for i := uint64(0); i < NumWays; i++ {
		w := &tt.ways[base+i]
		if d := w.data.Load(); d != 0 {
			w.data.Store(d ^ 0xff00)
		}
	}
	_, ok := tt.Lookup(hash)
	is.True(!ok)
}

func TestNewSearchSaturationClears(t *testing.T) {
	is := is.New(t)
	tt := NewWithBuckets(1 << 4)
	tt.Store(0xbeef, 6, SelectivityNone, 3, -64, 64, 10, 21)
	for i := 0; i < maxDate+1; i++ {
		tt.NewSearch()
	}
	_, ok := tt.Lookup(0xbeef)
	is.True(!ok)
	is.True(tt.date.Load() >= 1)
}

func TestNewRefusesDegenerateSize(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrTableTooSmall)
}

func TestConcurrentStoresStayConsistent(t *testing.T) {
	tt := NewWithBuckets(1 << 6)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			for i := 0; i < 5000; i++ {
				h := (seed*2654435761 + uint64(i)) % 512
				tt.Store(h, i%20+1, SelectivityNone, 1, -10, 10, i%21-10, i%64)
				if e, ok := tt.Lookup(h); ok {
					// Whatever we read must be internally
					// consistent, torn writes read as misses.
					assert.LessOrEqual(t, e.Lower, e.Upper)
					assert.GreaterOrEqual(t, e.Lower, ScoreMin)
					assert.LessOrEqual(t, e.Upper, ScoreMax)
				}
			}
		}(uint64(g + 1))
	}
	wg.Wait()
}
