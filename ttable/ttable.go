// Package ttable implements the shared transposition table: a
// fixed-capacity, multi-way, lock-free cache from position fingerprint
// to score bounds, search depth/selectivity, cost and best moves.
//
// Entries are two 64-bit words written with plain atomic stores and no
// locking. The tag word is the fingerprint XOR the packed payload; a
// reader that recomputes the XOR and does not get the fingerprint back
// has observed a torn or concurrent write and treats the entry as a
// miss. Racing stores may therefore lose a cache hit, never
// correctness.
package ttable

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"
)

const (
	// NumWays is the bucket associativity.
	NumWays = 4

	// ScoreMin and ScoreMax bound every stored score.
	ScoreMin = -64
	ScoreMax = 64

	// SelectivityNone marks an exact (unpruned) search; lower levels
	// accept increasing probabilistic cutoff risk.
	SelectivityNone = 5

	// NoMove mirrors othello.NoMove without importing it.
	NoMove = 65

	entryBytes  = 16
	maxDate     = 255
	minBuckets  = 1 << 10
	scoreOffset = 64
)

var ErrTableTooSmall = errors.New("transposition table: requested size too small")

// Entry is the decoded payload of one table way.
type Entry struct {
	Lower       int
	Upper       int
	Move        int
	Move2       int
	Depth       int
	Selectivity int
	Cost        int
	date        uint32
}

// payload layout, low to high:
//
//	lower+64:8 | upper+64:8 | move:7 | move2:7 | depth:6 | selectivity:3 | cost:8 | date:8
func pack(e Entry) uint64 {
	v := uint64(e.Lower + scoreOffset)
	v |= uint64(e.Upper+scoreOffset) << 8
	v |= uint64(e.Move) << 16
	v |= uint64(e.Move2) << 23
	v |= uint64(e.Depth) << 30
	v |= uint64(e.Selectivity) << 36
	v |= uint64(e.Cost) << 39
	v |= uint64(e.date) << 47
	return v
}

func unpack(v uint64) Entry {
	return Entry{
		Lower:       int(v&0xff) - scoreOffset,
		Upper:       int(v>>8&0xff) - scoreOffset,
		Move:        int(v >> 16 & 0x7f),
		Move2:       int(v >> 23 & 0x7f),
		Depth:       int(v >> 30 & 0x3f),
		Selectivity: int(v >> 36 & 0x7),
		Cost:        int(v >> 39 & 0xff),
		date:        uint32(v >> 47 & 0xff),
	}
}

type way struct {
	tag  atomic.Uint64
	data atomic.Uint64
}

// Table is safe for concurrent use by any number of readers and
// writers without locking.
type Table struct {
	ways []way
	mask uint64
	date atomic.Uint32

	lookups    atomic.Uint64
	hits       atomic.Uint64
	stores     atomic.Uint64
	collisions atomic.Uint64
}

// New sizes the table to a fraction of total system memory, rounded
// down to a power-of-two bucket count. It fails rather than run with a
// degenerate table.
func New(fractionOfMemory float64) (*Table, error) {
	totalMem := memory.TotalMemory()
	desired := fractionOfMemory * float64(totalMem) / float64(entryBytes*NumWays)
	if desired < minBuckets {
		return nil, ErrTableTooSmall
	}
	nBuckets := 1 << int(math.Log2(desired))
	t := NewWithBuckets(nBuckets)
	log.Info().
		Int("buckets", nBuckets).
		Int("estimated-bytes", nBuckets*NumWays*entryBytes).
		Uint64("total-system-memory-bytes", totalMem).
		Msg("transposition-table-size")
	return t, nil
}

// NewWithBuckets builds a table with an explicit bucket count, rounded
// up to a power of two. Intended for tests and fixed-size callers.
func NewWithBuckets(n int) *Table {
	size := 1
	for size < n {
		size <<= 1
	}
	t := &Table{
		ways: make([]way, size*NumWays),
		mask: uint64(size - 1),
	}
	t.date.Store(1)
	return t
}

// NewSearch advances the date counter that separates current entries
// from stale ones. When the counter saturates the table is cleared in
// bulk, the only time that happens.
func (t *Table) NewSearch() {
	if t.date.Add(1) >= maxDate {
		t.Clear()
	}
}

// Clear resets every entry and restarts the date counter.
func (t *Table) Clear() {
	for i := range t.ways {
		t.ways[i].tag.Store(0)
		t.ways[i].data.Store(0)
	}
	t.date.Store(1)
}

// Lookup returns the entry stored for the fingerprint, if any. A torn
// concurrent write reads as a miss.
func (t *Table) Lookup(hash uint64) (Entry, bool) {
	t.lookups.Add(1)
	base := (hash & t.mask) * NumWays
	for i := uint64(0); i < NumWays; i++ {
		w := &t.ways[base+i]
		data := w.data.Load()
		if data == 0 {
			continue
		}
		if w.tag.Load()^data != hash {
			t.collisions.Add(1)
			continue
		}
		t.hits.Add(1)
		return unpack(data), true
	}
	return Entry{}, false
}

// writeWay publishes payload then tag; a reader between the two stores
// fails the checksum and misses, which is the intended failure mode.
func writeWay(w *way, hash uint64, e Entry) {
	data := pack(e)
	w.data.Store(data)
	w.tag.Store(hash ^ data)
}

// priority ranks an occupied way for eviction: newer, deeper, more
// exact and more expensive entries are worth keeping. Empty ways rank
// below everything.
func (t *Table) priority(data uint64) uint32 {
	if data == 0 {
		return 0
	}
	e := unpack(data)
	age := (uint32(maxDate) + t.date.Load() - e.date) % maxDate
	return (maxDate-age)<<24 |
		uint32(e.Depth)<<18 |
		uint32(e.Selectivity)<<15 |
		uint32(e.Cost)<<7 | 1
}

// Store records the outcome of a search of the fingerprinted position
// over the window (alpha, beta) that returned score. An existing entry
// for the same depth and selectivity only has its bounds narrowed; a
// deeper or more exact search resets them; otherwise the least
// valuable way in the bucket is evicted.
func (t *Table) Store(hash uint64, depth, selectivity, cost, alpha, beta, score, move int) {
	date := t.date.Load()
	base := (hash & t.mask) * NumWays

	var victim *way
	victimPriority := uint32(math.MaxUint32)
	for i := uint64(0); i < NumWays; i++ {
		w := &t.ways[base+i]
		data := w.data.Load()
		if data != 0 && w.tag.Load()^data == hash {
			t.update(w, hash, unpack(data), depth, selectivity, cost, alpha, beta, score, move, date)
			return
		}
		if p := t.priority(data); p < victimPriority {
			victimPriority = p
			victim = w
		}
	}

	e := Entry{
		Lower:       ScoreMin,
		Upper:       ScoreMax,
		Move:        NoMove,
		Move2:       NoMove,
		Depth:       depth,
		Selectivity: selectivity,
		Cost:        cost,
		date:        date,
	}
	applyResult(&e, alpha, beta, score, move)
	writeWay(victim, hash, e)
	t.stores.Add(1)
}

func (t *Table) update(w *way, hash uint64, e Entry, depth, selectivity, cost, alpha, beta, score, move int, date uint32) {
	switch {
	case e.Depth == depth && e.Selectivity == selectivity:
		// Same search quality: bounds only narrow.
	case depth > e.Depth || (depth == e.Depth && selectivity > e.Selectivity):
		// Deeper or more exact: the old bounds no longer apply.
		e.Lower = ScoreMin
		e.Upper = ScoreMax
		e.Depth = depth
		e.Selectivity = selectivity
	default:
		// A shallower result proves nothing the entry doesn't know.
		return
	}
	if cost > e.Cost {
		e.Cost = cost
	}
	e.date = date
	applyResult(&e, alpha, beta, score, move)
	writeWay(w, hash, e)
	t.stores.Add(1)
}

// applyResult folds a fail-soft search result into the entry's bounds
// under the negamax convention: a score above alpha is a lower bound,
// a score below beta is an upper bound, inside the window it is both.
func applyResult(e *Entry, alpha, beta, score, move int) {
	if score > alpha {
		if score > e.Lower {
			e.Lower = score
		}
		if move != e.Move && move != NoMove {
			e.Move2 = e.Move
			e.Move = move
		}
	}
	if score < beta && score < e.Upper {
		e.Upper = score
	}
	if e.Lower > e.Upper {
		// Contradictory results across searches (selectivity or a
		// rare fingerprint collision); trust the newest.
		if score > alpha {
			e.Upper = e.Lower
		} else {
			e.Lower = e.Upper
		}
	}
}

// Stats reports cumulative counters since the last Clear.
func (t *Table) Stats() (lookups, hits, stores, collisions uint64) {
	return t.lookups.Load(), t.hits.Load(), t.stores.Load(), t.collisions.Load()
}
