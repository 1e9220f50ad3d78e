package othello

import (
	"fmt"
	"math/bits"
	"strings"
)

// Named squares, A1=0 through H8=63.
const (
	A1 = iota
	B1
	C1
	D1
	E1
	F1
	G1
	H1
	A2
	B2
	C2
	D2
	E2
	F2
	G2
	H2
	A3
	B3
	C3
	D3
	E3
	F3
	G3
	H3
	A4
	B4
	C4
	D4
	E4
	F4
	G4
	H4
	A5
	B5
	C5
	D5
	E5
	F5
	G5
	H5
	A6
	B6
	C6
	D6
	E6
	F6
	G6
	H6
	A7
	B7
	C7
	D7
	E7
	F7
	G7
	H7
	A8
	B8
	C8
	D8
	E8
	F8
	G8
	H8
)

// SquareString renders a square index as coordinate notation ("d3").
// Pass renders as "PA".
func SquareString(sq int) string {
	switch {
	case sq == Pass:
		return "PA"
	case sq < 0 || sq > Pass:
		return "--"
	}
	return fmt.Sprintf("%c%d", 'a'+sq%8, sq/8+1)
}

// ParseSquare parses coordinate notation ("d3", "D3") or "PA" for a
// pass.
func ParseSquare(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "pa" || s == "pass" {
		return Pass, nil
	}
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return NoMove, fmt.Errorf("bad square %q", s)
	}
	return int(s[1]-'1')*8 + int(s[0]-'a'), nil
}

// ParseBoard builds a position from a 64-character board string in
// rank order (A1..H8), using 'X' for black discs, 'O' for white and
// '-' for empty, and the color that is to move.
func ParseBoard(s string, toMove Color) (Position, error) {
	flat := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\t', '/':
			return -1
		}
		return r
	}, s)
	if len(flat) != 64 {
		return Position{}, fmt.Errorf("board string has %d squares, want 64", len(flat))
	}
	var black, white uint64
	for i := 0; i < 64; i++ {
		switch flat[i] {
		case 'X', 'x', 'B', 'b', '*':
			black |= 1 << uint(i)
		case 'O', 'o', 'W', 'w':
			white |= 1 << uint(i)
		case '-', '.':
		default:
			return Position{}, fmt.Errorf("bad square character %q at %s", flat[i], SquareString(i))
		}
	}
	if toMove == Black {
		return Position{Mover: black, Opp: white}, nil
	}
	return Position{Mover: white, Opp: black}, nil
}

// BoardString renders the position as a 64-character string in the
// format ParseBoard accepts, given the color to move.
func (p Position) BoardString(toMove Color) string {
	black, white := p.Mover, p.Opp
	if toMove == White {
		black, white = white, black
	}
	var sb strings.Builder
	for i := 0; i < 64; i++ {
		switch {
		case black&(1<<uint(i)) != 0:
			sb.WriteByte('X')
		case white&(1<<uint(i)) != 0:
			sb.WriteByte('O')
		default:
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// DisplayText renders a human-readable diagram with legal moves marked.
func (p Position) DisplayText(toMove Color) string {
	black, white := p.Mover, p.Opp
	if toMove == White {
		black, white = white, black
	}
	moves := p.LegalMoves()
	var sb strings.Builder
	sb.WriteString("  a b c d e f g h\n")
	for r := 0; r < 8; r++ {
		fmt.Fprintf(&sb, "%d ", r+1)
		for f := 0; f < 8; f++ {
			x := uint64(1) << uint(r*8+f)
			switch {
			case black&x != 0:
				sb.WriteString("X ")
			case white&x != 0:
				sb.WriteString("O ")
			case moves&x != 0:
				sb.WriteString(". ")
			default:
				sb.WriteString("- ")
			}
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%s to move; discs X %d, O %d\n",
		toMove, bits.OnesCount64(black), bits.OnesCount64(white))
	return sb.String()
}
