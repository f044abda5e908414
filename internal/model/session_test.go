package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActiveSession() *Session {
	s := NewSession("session-1", "alice", Options{MoveTimeout: 2 * time.Minute, AllowSpectators: true},
		time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.PlayerB = "bob"
	s.Status = StatusActive
	return s
}

func TestSlotHelpers(t *testing.T) {
	s := newActiveSession()

	assert.Equal(t, MarkX, s.MarkOf("alice"))
	assert.Equal(t, MarkO, s.MarkOf("bob"))
	assert.Equal(t, MarkNone, s.MarkOf("carol"))
	assert.Equal(t, MarkNone, s.MarkOf(""))

	assert.Equal(t, PlayerID("alice"), s.CurrentPlayerID())
	assert.Equal(t, PlayerID("bob"), s.OpponentOf("alice"))
	assert.Equal(t, PlayerID("alice"), s.OpponentOf("bob"))
	assert.Empty(t, s.OpponentOf("carol"))

	s.Spectators = append(s.Spectators, "carol")
	assert.True(t, s.IsSpectator("carol"))
	assert.False(t, s.IsPlayer("carol"))
	assert.Equal(t, []PlayerID{"alice", "bob", "carol"}, s.Participants())
}

func TestOpponentOfWaitingSessionIsEmpty(t *testing.T) {
	s := NewSession("session-1", "alice", Options{}, time.Now())
	assert.Empty(t, s.OpponentOf("alice"))
	assert.Equal(t, []PlayerID{"alice"}, s.Participants())
}

func TestCloneIsIndependent(t *testing.T) {
	s := newActiveSession()
	s.Moves = append(s.Moves, Move{PlayerID: "alice", Cell: 0, Mark: MarkX, Seq: 1})
	s.Board[0] = MarkX
	done := time.Now()
	s.CompletedAt = &done

	c := s.Clone()
	c.Moves[0].Cell = 5
	c.Board[1] = MarkO
	c.Spectators = append(c.Spectators, "carol")
	*c.CompletedAt = done.Add(time.Hour)

	assert.Equal(t, 0, s.Moves[0].Cell)
	assert.Equal(t, MarkNone, s.Board[1])
	assert.Empty(t, s.Spectators)
	assert.Equal(t, done, *s.CompletedAt)
}

func TestReplayMatchesBoard(t *testing.T) {
	s := newActiveSession()
	for i, cell := range []int{4, 0, 8} {
		mark := MarkX
		if i%2 == 1 {
			mark = MarkO
		}
		s.Board[cell] = mark
		s.Moves = append(s.Moves, Move{Cell: cell, Mark: mark, Seq: i + 1})
	}
	assert.Equal(t, s.Board, s.Replay())
}

func TestViewForPlayer(t *testing.T) {
	s := newActiveSession()

	v := s.ViewFor("alice")
	assert.True(t, v.IsPlayer)
	assert.Equal(t, MarkX, v.Mark)
	assert.Equal(t, PlayerID("bob"), v.OpponentID)
	assert.True(t, v.IsCurrentTurn)
	assert.Equal(t, PlayerID("alice"), v.PlayerA)
	assert.Equal(t, int64(120000), v.Options.TimeLimitMs)
	assert.Len(t, v.Board, BoardCells)

	v = s.ViewFor("bob")
	assert.False(t, v.IsCurrentTurn)
}

func TestViewForOutsiderHidesPlayers(t *testing.T) {
	s := newActiveSession()
	s.Spectators = []PlayerID{"carol"}

	v := s.ViewFor("carol")
	assert.False(t, v.IsPlayer)
	assert.True(t, v.IsSpectator)
	assert.Empty(t, v.PlayerA)
	assert.Empty(t, v.PlayerB)
	assert.Equal(t, 1, v.SpectatorCount)

	public := s.ViewFor("")
	assert.False(t, public.IsSpectator)
	assert.Empty(t, public.PlayerA)
}

func TestViewOfTerminalSessionRevealsPlayers(t *testing.T) {
	s := newActiveSession()
	s.Status = StatusCompleted
	s.Outcome = Outcome{Winner: "alice"}

	v := s.ViewFor("")
	assert.Equal(t, PlayerID("alice"), v.PlayerA)
	assert.Equal(t, PlayerID("bob"), v.PlayerB)
	assert.Equal(t, PlayerID("alice"), v.Winner)
	assert.Empty(t, v.CurrentMark)
}

func TestResultDelta(t *testing.T) {
	s := newActiveSession()

	s.Outcome = Outcome{Winner: "alice"}
	assert.Equal(t, StatsDelta{GamesPlayed: 1, GamesWon: 1}, ResultDelta(s, "alice"))
	assert.Equal(t, StatsDelta{GamesPlayed: 1, GamesLost: 1}, ResultDelta(s, "bob"))

	s.Outcome = Outcome{Draw: true}
	assert.Equal(t, StatsDelta{GamesPlayed: 1, GamesDrawn: 1}, ResultDelta(s, "alice"))

	s.Outcome = Outcome{}
	assert.Equal(t, StatsDelta{GamesPlayed: 1}, ResultDelta(s, "bob"))

	var stats PlayerStats
	stats.Apply(StatsDelta{GamesPlayed: 1, GamesWon: 1})
	stats.Apply(StatsDelta{GamesPlayed: 1, GamesDrawn: 1})
	require.Equal(t, 2, stats.GamesPlayed)
	assert.Equal(t, 1, stats.GamesWon)
	assert.Equal(t, 1, stats.GamesDrawn)
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusWaiting.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusAbandoned.IsTerminal())
}
