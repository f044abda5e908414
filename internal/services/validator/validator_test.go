package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-go/internal/model"
)

const (
	X = model.MarkX
	O = model.MarkO
	E = model.MarkNone
)

type ValidatorSuite struct {
	suite.Suite
	now time.Time
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ValidatorSuite) activeSession() *model.Session {
	sess := model.NewSession("session-1", "player-1", model.Options{AllowSpectators: true}, s.now)
	sess.PlayerB = "player-2"
	sess.Status = model.StatusActive
	return sess
}

// play appends a move the way the session store does, without validation
func (s *ValidatorSuite) play(sess *model.Session, cell int) {
	player := sess.CurrentPlayerID()
	sess.Board[cell] = sess.Turn
	sess.Moves = append(sess.Moves, model.Move{
		PlayerID:  player,
		Cell:      cell,
		Mark:      sess.Turn,
		Timestamp: s.now,
		Seq:       len(sess.Moves) + 1,
	})
	sess.Turn = sess.Turn.Opponent()
}

// ValidateMove tests

func (s *ValidatorSuite) TestValidateMoveSucceeds() {
	sess := s.activeSession()
	s.NoError(ValidateMove(sess, "player-1", 4))
}

func (s *ValidatorSuite) TestValidateMoveRejectsWaitingSession() {
	sess := model.NewSession("session-1", "player-1", model.Options{}, s.now)
	s.ErrorIs(ValidateMove(sess, "player-1", 0), model.ErrSessionNotActive)
}

func (s *ValidatorSuite) TestValidateMoveRejectsTerminalSession() {
	for _, status := range []model.Status{model.StatusCompleted, model.StatusAbandoned} {
		sess := s.activeSession()
		sess.Status = status
		s.ErrorIs(ValidateMove(sess, "player-1", 0), model.ErrSessionNotActive, string(status))
	}
}

func (s *ValidatorSuite) TestValidateMoveRejectsWrongPlayer() {
	sess := s.activeSession()
	s.ErrorIs(ValidateMove(sess, "player-2", 0), model.ErrNotYourTurn)
	s.ErrorIs(ValidateMove(sess, "stranger", 0), model.ErrNotYourTurn)
	s.ErrorIs(ValidateMove(sess, "", 0), model.ErrNotYourTurn)

	s.play(sess, 0)
	s.ErrorIs(ValidateMove(sess, "player-1", 1), model.ErrNotYourTurn)
	s.NoError(ValidateMove(sess, "player-2", 1))
}

func (s *ValidatorSuite) TestValidateMoveRejectsOutOfRange() {
	sess := s.activeSession()
	s.ErrorIs(ValidateMove(sess, "player-1", -1), model.ErrCellOutOfRange)
	s.ErrorIs(ValidateMove(sess, "player-1", 9), model.ErrCellOutOfRange)
}

func (s *ValidatorSuite) TestValidateMoveRejectsOccupiedCell() {
	sess := s.activeSession()
	s.play(sess, 4)
	s.ErrorIs(ValidateMove(sess, "player-2", 4), model.ErrCellOccupied)
}

func (s *ValidatorSuite) TestValidateMoveChecksStatusFirst() {
	sess := s.activeSession()
	sess.Status = model.StatusCompleted
	s.ErrorIs(ValidateMove(sess, "player-2", 42), model.ErrSessionNotActive)
}

// EvaluateBoard tests

func (s *ValidatorSuite) TestEvaluateEmptyBoardInProgress() {
	eval := EvaluateBoard(model.Board{})
	s.Equal(StateInProgress, eval.State)
	s.False(eval.Decided())
}

func (s *ValidatorSuite) TestEvaluateEveryWinningLine() {
	for _, line := range winningLines {
		for _, mark := range []model.Mark{X, O} {
			var b model.Board
			for _, cell := range line {
				b[cell] = mark
			}
			eval := EvaluateBoard(b)
			s.Equal(StateWin, eval.State, "line %v", line)
			s.Equal(mark, eval.Mark)
			s.Equal(line[:], eval.Line)
		}
	}
}

func (s *ValidatorSuite) TestEvaluateDraw() {
	b := model.Board{
		X, O, X,
		X, O, O,
		O, X, X,
	}
	eval := EvaluateBoard(b)
	s.Equal(StateDraw, eval.State)
	s.True(eval.Decided())
	s.Empty(eval.Line)
}

func (s *ValidatorSuite) TestEvaluateWinBeatsFullBoard() {
	b := model.Board{
		X, O, X,
		O, X, O,
		O, X, X,
	}
	s.True(b.IsFull())
	eval := EvaluateBoard(b)
	s.Equal(StateWin, eval.State)
	s.Equal(X, eval.Mark)
	s.Equal([]int{0, 4, 8}, eval.Line)
}

func (s *ValidatorSuite) TestEvaluateReportsFirstLine() {
	b := model.Board{
		X, X, X,
		O, O, O,
		E, E, E,
	}
	eval := EvaluateBoard(b)
	s.Equal([]int{0, 1, 2}, eval.Line)
	s.Equal(X, eval.Mark)
}

func (s *ValidatorSuite) TestEvaluateIsDeterministic() {
	b := model.Board{
		X, O, E,
		E, X, E,
		O, E, E,
	}
	first := EvaluateBoard(b)
	for i := 0; i < 10; i++ {
		s.Equal(first, EvaluateBoard(b))
	}
}

// AvailableMoves tests

func (s *ValidatorSuite) TestAvailableMoves() {
	b := model.Board{
		X, E, O,
		E, X, E,
		E, E, O,
	}
	s.Equal([]int{1, 3, 5, 6, 7}, AvailableMoves(b))
	s.Len(AvailableMoves(model.Board{}), model.BoardCells)
}

// CheckConsistency tests

func (s *ValidatorSuite) TestConsistencyHoldsAfterReplay() {
	sess := s.activeSession()
	for _, cell := range []int{0, 3, 1, 4} {
		s.play(sess, cell)
		s.Require().NoError(CheckConsistency(sess))
		s.Equal(sess.Board, sess.Replay())
	}
}

func (s *ValidatorSuite) TestConsistencyDetectsBoardMismatch() {
	sess := s.activeSession()
	s.play(sess, 0)
	sess.Board[8] = O
	s.ErrorIs(CheckConsistency(sess), model.ErrInconsistentSession)
}

func (s *ValidatorSuite) TestConsistencyDetectsSequenceGap() {
	sess := s.activeSession()
	s.play(sess, 0)
	s.play(sess, 1)
	sess.Moves[1].Seq = 3
	s.ErrorIs(CheckConsistency(sess), model.ErrInconsistentSession)
}

func (s *ValidatorSuite) TestConsistencyDetectsWrongTurn() {
	sess := s.activeSession()
	s.play(sess, 0)
	sess.Turn = X
	s.ErrorIs(CheckConsistency(sess), model.ErrInconsistentSession)
}

func (s *ValidatorSuite) TestConsistencyChecksTurnOfFinishedSession() {
	sess := s.activeSession()
	for _, cell := range []int{0, 3, 1, 4, 2} {
		s.play(sess, cell)
	}
	sess.Status = model.StatusCompleted
	sess.Outcome.Winner = "player-1"
	s.Require().NoError(CheckConsistency(sess))

	sess.Turn = X
	s.ErrorIs(CheckConsistency(sess), model.ErrInconsistentSession)
}

func (s *ValidatorSuite) TestConsistencyDetectsActiveWithoutOpponent() {
	sess := s.activeSession()
	sess.PlayerB = ""
	s.ErrorIs(CheckConsistency(sess), model.ErrInconsistentSession)
}
