package othello

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
)

// Hash returns a 64-bit fingerprint of the position, independent of
// the move order that reached it. It is used as the transposition
// table key; two positions with the same occupancy and the same side
// relationship hash identically.
func (p Position) Hash() uint64 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], p.Mover)
	binary.LittleEndian.PutUint64(b[8:], p.Opp)
	return xxhash.Sum64(b[:])
}
