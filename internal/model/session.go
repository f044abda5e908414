package model

import (
	"slices"
	"time"
)

// SessionID uniquely identifies a game session
type SessionID string

// Status represents the lifecycle state of a session
type Status string

const (
	StatusWaiting   Status = "waiting"   // one player, waiting for an opponent
	StatusActive    Status = "active"    // two players, moves being played
	StatusCompleted Status = "completed" // decided by a win or a draw
	StatusAbandoned Status = "abandoned" // forfeited or timed out
)

// IsTerminal returns true if no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Options are fixed when a session is created
type Options struct {
	WaitTimeout     time.Duration `json:"waitTimeout"`
	MoveTimeout     time.Duration `json:"moveTimeout"`
	AllowSpectators bool          `json:"allowSpectators"`
}

// Outcome records how a session ended. Both fields empty on an abandoned
// session means the winner could not be determined.
type Outcome struct {
	Winner PlayerID `json:"winner,omitempty"`
	Draw   bool     `json:"draw,omitempty"`
}

// Decided returns true if a winner or a draw has been recorded
func (o Outcome) Decided() bool {
	return o.Winner != "" || o.Draw
}

// Move is one mark placed on the board. Immutable once appended.
type Move struct {
	PlayerID  PlayerID  `json:"playerId"`
	Cell      int       `json:"cell"`
	Mark      Mark      `json:"mark"`
	Timestamp time.Time `json:"timestamp"`
	Seq       int       `json:"seq"`
}

// Session is one game instance
type Session struct {
	ID          SessionID  `json:"id"`
	PlayerA     PlayerID   `json:"playerA"`
	PlayerB     PlayerID   `json:"playerB,omitempty"`
	Board       Board      `json:"board"`
	Turn        Mark       `json:"turn"`
	Status      Status     `json:"status"`
	Outcome     Outcome    `json:"outcome"`
	WinningLine []int      `json:"winningLine,omitempty"`
	Moves       []Move     `json:"moves"`
	Spectators  []PlayerID `json:"spectators"`
	Options     Options    `json:"options"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastMoveAt  time.Time  `json:"lastMoveAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewSession creates a waiting session with the creator in slot A
func NewSession(id SessionID, creator PlayerID, opts Options, now time.Time) *Session {
	return &Session{
		ID:         id,
		PlayerA:    creator,
		Turn:       MarkX,
		Status:     StatusWaiting,
		Moves:      []Move{},
		Spectators: []PlayerID{},
		Options:    opts,
		CreatedAt:  now,
		LastMoveAt: now,
	}
}

// MarkOf returns the mark played by the given player, or MarkNone
func (s *Session) MarkOf(player PlayerID) Mark {
	switch {
	case player == "":
		return MarkNone
	case player == s.PlayerA:
		return MarkX
	case player == s.PlayerB:
		return MarkO
	default:
		return MarkNone
	}
}

// PlayerFor returns the player occupying the slot for the given mark
func (s *Session) PlayerFor(m Mark) PlayerID {
	switch m {
	case MarkX:
		return s.PlayerA
	case MarkO:
		return s.PlayerB
	default:
		return ""
	}
}

// CurrentPlayerID returns the player whose mark moves next
func (s *Session) CurrentPlayerID() PlayerID {
	return s.PlayerFor(s.Turn)
}

// OpponentOf returns the other occupied slot, or empty if there is none
func (s *Session) OpponentOf(player PlayerID) PlayerID {
	m := s.MarkOf(player)
	if m == MarkNone {
		return ""
	}
	return s.PlayerFor(m.Opponent())
}

// IsPlayer returns true if the player occupies a slot
func (s *Session) IsPlayer(player PlayerID) bool {
	return s.MarkOf(player) != MarkNone
}

// IsSpectator returns true if the player is in the spectator set
func (s *Session) IsSpectator(player PlayerID) bool {
	return slices.Contains(s.Spectators, player)
}

// Participants returns the players followed by the spectators
func (s *Session) Participants() []PlayerID {
	out := make([]PlayerID, 0, 2+len(s.Spectators))
	out = append(out, s.PlayerA)
	if s.PlayerB != "" {
		out = append(out, s.PlayerB)
	}
	return append(out, s.Spectators...)
}

// Replay rebuilds the board from the move log
func (s *Session) Replay() Board {
	var b Board
	for _, m := range s.Moves {
		if IsValidCell(m.Cell) {
			b[m.Cell] = m.Mark
		}
	}
	return b
}

// Clone returns a deep copy safe to hand to other goroutines
func (s *Session) Clone() *Session {
	c := *s
	c.Moves = slices.Clone(s.Moves)
	if c.Moves == nil {
		c.Moves = []Move{}
	}
	c.Spectators = slices.Clone(s.Spectators)
	if c.Spectators == nil {
		c.Spectators = []PlayerID{}
	}
	c.WinningLine = slices.Clone(s.WinningLine)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
