package search

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/verdile/desdemona/othello"
)

// PVLine is the principal variation: the sequence of best moves the
// search expects from the current position.
type PVLine struct {
	Moves []int
	score int
}

func (pv *PVLine) Clear() {
	pv.Moves = nil
}

// Update replaces the line with a new best move followed by the best
// continuation found below it.
func (pv *PVLine) Update(sq int, child PVLine, score int) {
	pv.Clear()
	pv.Moves = append(pv.Moves, sq)
	pv.Moves = append(pv.Moves, child.Moves...)
	pv.score = score
}

func (pv PVLine) String() string {
	return fmt.Sprintf("val %+d; %s", pv.score,
		strings.Join(lo.Map(pv.Moves, func(sq int, _ int) string {
			return othello.SquareString(sq)
		}), " "))
}
