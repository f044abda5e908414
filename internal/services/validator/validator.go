package validator

import (
	"fmt"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// winningLines lists every triple that wins, in evaluation order
var winningLines = [8][3]int{
	{0, 1, 2}, // top row
	{3, 4, 5}, // middle row
	{6, 7, 8}, // bottom row
	{0, 3, 6}, // left column
	{1, 4, 7}, // middle column
	{2, 5, 8}, // right column
	{0, 4, 8}, // diagonal
	{2, 4, 6}, // anti-diagonal
}

// State is the result of evaluating a board
type State string

const (
	StateInProgress State = "in_progress"
	StateWin        State = "win"
	StateDraw       State = "draw"
)

// Evaluation describes a board position
type Evaluation struct {
	State State
	Mark  model.Mark // winning mark, set only for StateWin
	Line  []int      // winning triple, set only for StateWin
}

// Decided returns true if the board is a win or a draw
func (e Evaluation) Decided() bool {
	return e.State != StateInProgress
}

// ValidateMove checks whether player may place a mark at cell
func ValidateMove(s *model.Session, player model.PlayerID, cell int) error {
	if s.Status != model.StatusActive {
		return model.ErrSessionNotActive
	}
	if player == "" || s.CurrentPlayerID() != player {
		return model.ErrNotYourTurn
	}
	if !model.IsValidCell(cell) {
		return model.ErrCellOutOfRange
	}
	if !s.Board.IsEmpty(cell) {
		return model.ErrCellOccupied
	}
	return nil
}

// EvaluateBoard reports the first complete triple as a win, then a full
// board as a draw. A win is always reported over a draw.
func EvaluateBoard(b model.Board) Evaluation {
	for _, line := range winningLines {
		a, c, d := line[0], line[1], line[2]
		if b[a] != model.MarkNone && b[a] == b[c] && b[c] == b[d] {
			return Evaluation{State: StateWin, Mark: b[a], Line: []int{a, c, d}}
		}
	}
	if b.IsFull() {
		return Evaluation{State: StateDraw}
	}
	return Evaluation{State: StateInProgress}
}

// AvailableMoves returns the empty cells in ascending order
func AvailableMoves(b model.Board) []int {
	var cells []int
	for i := range b {
		if b[i] == model.MarkNone {
			cells = append(cells, i)
		}
	}
	return cells
}

// CheckConsistency verifies the structural invariants of a session:
// the board is the replay of the move log, sequence numbers are gapless,
// marks alternate starting with X, and slot occupancy matches the status.
func CheckConsistency(s *model.Session) error {
	if s.PlayerA == "" {
		return fmt.Errorf("%w: slot A is empty", model.ErrInconsistentSession)
	}
	if s.Status == model.StatusActive && s.PlayerB == "" {
		return fmt.Errorf("%w: active session without slot B", model.ErrInconsistentSession)
	}
	if s.Status == model.StatusWaiting && (s.PlayerB != "" || len(s.Moves) > 0) {
		return fmt.Errorf("%w: waiting session has an opponent or moves", model.ErrInconsistentSession)
	}

	var replay model.Board
	expect := model.MarkX
	for i, m := range s.Moves {
		if m.Seq != i+1 {
			return fmt.Errorf("%w: move %d has sequence %d", model.ErrInconsistentSession, i+1, m.Seq)
		}
		if !model.IsValidCell(m.Cell) || replay[m.Cell] != model.MarkNone {
			return fmt.Errorf("%w: move %d writes cell %d twice or out of range", model.ErrInconsistentSession, m.Seq, m.Cell)
		}
		if m.Mark != expect || s.PlayerFor(m.Mark) != m.PlayerID {
			return fmt.Errorf("%w: move %d played out of turn", model.ErrInconsistentSession, m.Seq)
		}
		replay[m.Cell] = m.Mark
		expect = expect.Opponent()
	}
	if replay != s.Board {
		return fmt.Errorf("%w: board does not match move log", model.ErrInconsistentSession)
	}

	// The turn flips on every move, the deciding one included
	if s.Turn != expect {
		return fmt.Errorf("%w: turn is %s, expected %s", model.ErrInconsistentSession, s.Turn, expect)
	}

	if s.Outcome.Winner != "" && s.Outcome.Draw {
		return fmt.Errorf("%w: session is both won and drawn", model.ErrInconsistentSession)
	}
	if s.Outcome.Winner != "" && !s.IsPlayer(s.Outcome.Winner) {
		return fmt.Errorf("%w: winner is not a player", model.ErrInconsistentSession)
	}
	return nil
}
