package othello

import "math/bits"

const (
	rank1   = uint64(0xff)
	rank8   = uint64(0xff) << 56
	edgeAll = rank1 | rank8 | fileA | fileH
)

var (
	diag7Masks [15]uint64 // constant rank+file lines (NW/SE axis)
	diag9Masks [15]uint64 // constant rank-file lines (NE/SW axis)
)

func init() {
	for sq := 0; sq < 64; sq++ {
		r, f := sq/8, sq%8
		diag7Masks[r+f] |= 1 << uint(sq)
		diag9Masks[r-f+7] |= 1 << uint(sq)
	}
}

func fullRanks(occ uint64) uint64 {
	var full uint64
	for r := 0; r < 8; r++ {
		m := rank1 << uint(8*r)
		if occ&m == m {
			full |= m
		}
	}
	return full
}

func fullFiles(occ uint64) uint64 {
	var full uint64
	for f := 0; f < 8; f++ {
		m := uint64(fileA) << uint(f)
		if occ&m == m {
			full |= m
		}
	}
	return full
}

func fullDiags(occ uint64, masks *[15]uint64) uint64 {
	var full uint64
	for _, m := range masks {
		if occ&m == m {
			full |= m
		}
	}
	return full
}

// StableDiscs returns a conservative subset of own discs that can
// never be flipped again. A disc is counted once it is protected along
// all four line axes: an axis protects it when the disc sits at the
// board edge of that axis, the whole line through it is occupied, or
// an adjacent disc along the axis is itself stable. The fixpoint
// starts empty; corners seed it through the edge rule.
func StableDiscs(own, occ uint64) uint64 {
	fullH := fullRanks(occ)
	fullV := fullFiles(occ)
	fullD7 := fullDiags(occ, &diag7Masks)
	fullD9 := fullDiags(occ, &diag9Masks)

	var stable uint64
	for {
		protH := fullH | fileA | fileH | shiftE(stable) | shiftW(stable)
		protV := fullV | rank1 | rank8 | shiftN(stable) | shiftS(stable)
		protD7 := fullD7 | edgeAll | shiftNW(stable) | shiftSE(stable)
		protD9 := fullD9 | edgeAll | shiftNE(stable) | shiftSW(stable)
		next := stable | own&protH&protV&protD7&protD9
		if next == stable {
			return stable
		}
		stable = next
	}
}

// StabilityBound is a cheap upper bound on the final score achievable
// by the side to move, derived from the opponent discs that can never
// be flipped. Used by the stability-cutoff pruning test.
func StabilityBound(p Position) int {
	s := bits.OnesCount64(StableDiscs(p.Opp, p.Occupied()))
	return 64 - 2*s
}
