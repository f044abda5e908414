package model

// BoardCells is the number of cells on a board
const BoardCells = 9

// Mark is the symbol a player places on the board
type Mark string

const (
	MarkNone Mark = ""
	MarkX    Mark = "X" // slot A, always moves first
	MarkO    Mark = "O" // slot B
)

// Opponent returns the other player's mark
func (m Mark) Opponent() Mark {
	switch m {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return MarkNone
	}
}

// Board is the 3x3 grid in row-major order
type Board [BoardCells]Mark

// IsValidCell returns true if the index addresses a cell on the board
func IsValidCell(cell int) bool {
	return cell >= 0 && cell < BoardCells
}

// IsEmpty returns true if the cell holds no mark
func (b *Board) IsEmpty(cell int) bool {
	return IsValidCell(cell) && b[cell] == MarkNone
}

// Count returns how many cells hold the given mark
func (b *Board) Count(m Mark) int {
	n := 0
	for _, c := range b {
		if c == m {
			n++
		}
	}
	return n
}

// IsFull returns true if every cell holds a mark
func (b *Board) IsFull() bool {
	return b.Count(MarkNone) == 0
}
