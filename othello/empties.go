package othello

import "math/bits"

// ListEnd terminates EmptyList iteration; it doubles as the list's
// sentinel node.
const ListEnd = 64

// squarePriority orders empty squares in search-favorable order:
// corners first, then edge and central squares, with the X and C
// squares next to corners last. Lower is earlier.
var squarePriority = [64]uint8{
	0, 6, 2, 3, 3, 2, 6, 0,
	6, 7, 5, 5, 5, 5, 7, 6,
	2, 5, 1, 4, 4, 1, 5, 2,
	3, 5, 4, 4, 4, 4, 5, 3,
	3, 5, 4, 4, 4, 4, 5, 3,
	2, 5, 1, 4, 4, 1, 5, 2,
	6, 7, 5, 5, 5, 5, 7, 6,
	0, 6, 2, 3, 3, 2, 6, 0,
}

// SquarePriority exposes the static search order of a square; lower
// values are tried earlier.
func SquarePriority(sq int) int {
	return int(squarePriority[sq])
}

// Quadrant classifies a square into one of the four board quadrants,
// the basis of the endgame parity heuristic.
func Quadrant(sq int) uint {
	return uint(sq>>2)&1 | uint(sq>>4)&2
}

// EmptyList is a doubly linked ordering of the not-yet-played squares,
// kept consistent with the position's empty bitmap by the search's
// make/unmake discipline: Remove on play, Restore on undo, strictly
// stack-ordered. It also tracks the odd/even parity of each quadrant's
// empty count.
type EmptyList struct {
	next   [65]uint8
	prev   [65]uint8
	count  int
	parity uint8
}

// NewEmptyList builds the list for a position, sorted by
// squarePriority.
func NewEmptyList(p Position) *EmptyList {
	el := &EmptyList{}
	el.Init(p)
	return el
}

// Init rebuilds the list from the position's empty squares.
func (el *EmptyList) Init(p Position) {
	var sqs [64]int
	n := 0
	for e := p.Empty(); e != 0; e &= e - 1 {
		sqs[n] = bits.TrailingZeros64(e)
		n++
	}
	// Insertion sort by priority; n is at most 60 and usually small.
	for i := 1; i < n; i++ {
		s := sqs[i]
		j := i - 1
		for j >= 0 && squarePriority[sqs[j]] > squarePriority[s] {
			sqs[j+1] = sqs[j]
			j--
		}
		sqs[j+1] = s
	}
	el.count = n
	el.parity = 0
	last := ListEnd
	for i := 0; i < n; i++ {
		el.next[last] = uint8(sqs[i])
		el.prev[sqs[i]] = uint8(last)
		last = sqs[i]
		el.parity ^= 1 << Quadrant(sqs[i])
	}
	el.next[last] = ListEnd
	el.prev[ListEnd] = uint8(last)
}

// Remove unlinks a square when its move is played. The square's links
// are left intact so Restore can relink it in place.
func (el *EmptyList) Remove(sq int) {
	el.next[el.prev[sq]] = el.next[sq]
	el.prev[el.next[sq]] = el.prev[sq]
	el.count--
	el.parity ^= 1 << Quadrant(sq)
}

// Restore relinks a square removed by Remove. Restores must happen in
// reverse order of removal.
func (el *EmptyList) Restore(sq int) {
	el.next[el.prev[sq]] = uint8(sq)
	el.prev[el.next[sq]] = uint8(sq)
	el.count++
	el.parity ^= 1 << Quadrant(sq)
}

// First returns the first square in the list, or ListEnd if empty.
func (el *EmptyList) First() int {
	return int(el.next[ListEnd])
}

// Next returns the square after sq, or ListEnd.
func (el *EmptyList) Next(sq int) int {
	return int(el.next[sq])
}

func (el *EmptyList) Count() int {
	return el.count
}

// Parity returns the four quadrant-parity bits.
func (el *EmptyList) Parity() uint8 {
	return el.parity
}

// Odd reports whether sq sits in a quadrant with an odd number of
// empty squares.
func (el *EmptyList) Odd(sq int) bool {
	return el.parity&(1<<Quadrant(sq)) != 0
}
