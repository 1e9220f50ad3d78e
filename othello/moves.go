package othello

// The move and flip kernels are installed as function values so that a
// platform-tuned implementation can replace them once at startup. The
// portable versions below are the reference implementation.
var (
	Moves = movesGeneric
	Flips = flipsGeneric
)

const (
	fileA = 0x0101010101010101
	fileH = 0x8080808080808080
)

func shiftE(b uint64) uint64  { return (b &^ fileH) << 1 }
func shiftW(b uint64) uint64  { return (b &^ fileA) >> 1 }
func shiftN(b uint64) uint64  { return b << 8 }
func shiftS(b uint64) uint64  { return b >> 8 }
func shiftNE(b uint64) uint64 { return (b &^ fileH) << 9 }
func shiftNW(b uint64) uint64 { return (b &^ fileA) << 7 }
func shiftSE(b uint64) uint64 { return (b &^ fileH) >> 7 }
func shiftSW(b uint64) uint64 { return (b &^ fileA) >> 9 }

var shifts = [8]func(uint64) uint64{
	shiftE, shiftW, shiftN, shiftS, shiftNE, shiftNW, shiftSE, shiftSW,
}

// movesGeneric computes the legal-move bitset for mover against opp by
// flood-filling runs of opponent discs in each of the eight directions.
func movesGeneric(mover, opp uint64) uint64 {
	empty := ^(mover | opp)
	var moves uint64
	for _, sh := range shifts {
		f := sh(mover) & opp
		f |= sh(f) & opp
		f |= sh(f) & opp
		f |= sh(f) & opp
		f |= sh(f) & opp
		f |= sh(f) & opp
		moves |= sh(f) & empty
	}
	return moves
}

// flipsGeneric computes the mask of opponent discs turned when mover
// plays sq. A zero result means sq is not a legal move.
func flipsGeneric(mover, opp uint64, sq int) uint64 {
	x := uint64(1) << uint(sq)
	var flips uint64
	for _, sh := range shifts {
		f := sh(x) & opp
		f |= sh(f) & opp
		f |= sh(f) & opp
		f |= sh(f) & opp
		f |= sh(f) & opp
		f |= sh(f) & opp
		if sh(f)&mover != 0 {
			flips |= f
		}
	}
	return flips
}
