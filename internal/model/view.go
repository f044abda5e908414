package model

import "time"

// SessionView is the projection of a session sent to clients.
// Player ids are only revealed to participants, or once the session is over.
type SessionView struct {
	SessionID      SessionID   `json:"sessionId"`
	Status         Status      `json:"status"`
	Board          []Mark      `json:"board"`
	CurrentMark    Mark        `json:"currentMark,omitempty"`
	Winner         PlayerID    `json:"winner,omitempty"`
	Draw           bool        `json:"draw,omitempty"`
	WinningLine    []int       `json:"winningLine,omitempty"`
	PlayerA        PlayerID    `json:"playerA,omitempty"`
	PlayerB        PlayerID    `json:"playerB,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	LastMoveAt     time.Time   `json:"lastMoveAt"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
	MoveCount      int         `json:"moveCount"`
	SpectatorCount int         `json:"spectatorCount"`
	Options        ViewOptions `json:"options"`

	// Viewer-specific fields
	IsPlayer      bool     `json:"isPlayer,omitempty"`
	Mark          Mark     `json:"mark,omitempty"`
	OpponentID    PlayerID `json:"opponentId,omitempty"`
	IsCurrentTurn bool     `json:"isCurrentTurn,omitempty"`
	IsSpectator   bool     `json:"isSpectator,omitempty"`
}

// ViewOptions is the client form of Options, with durations in milliseconds
type ViewOptions struct {
	TimeLimitMs     int64 `json:"timeLimit"`
	AllowSpectators bool  `json:"allowSpectators"`
}

// ViewFor builds the view of the session seen by viewer.
// An empty viewer yields the public view used for broadcasts.
func (s *Session) ViewFor(viewer PlayerID) SessionView {
	v := SessionView{
		SessionID:      s.ID,
		Status:         s.Status,
		Board:          append([]Mark(nil), s.Board[:]...),
		Winner:         s.Outcome.Winner,
		Draw:           s.Outcome.Draw,
		WinningLine:    append([]int(nil), s.WinningLine...),
		CreatedAt:      s.CreatedAt,
		LastMoveAt:     s.LastMoveAt,
		CompletedAt:    s.CompletedAt,
		MoveCount:      len(s.Moves),
		SpectatorCount: len(s.Spectators),
		Options: ViewOptions{
			TimeLimitMs:     s.Options.MoveTimeout.Milliseconds(),
			AllowSpectators: s.Options.AllowSpectators,
		},
	}
	if !s.Status.IsTerminal() {
		v.CurrentMark = s.Turn
	}

	isPlayer := s.IsPlayer(viewer)
	if isPlayer || s.Status.IsTerminal() {
		v.PlayerA = s.PlayerA
		v.PlayerB = s.PlayerB
	}

	if isPlayer {
		v.IsPlayer = true
		v.Mark = s.MarkOf(viewer)
		v.OpponentID = s.OpponentOf(viewer)
		v.IsCurrentTurn = s.Status == StatusActive && s.CurrentPlayerID() == viewer
	} else if viewer != "" && s.IsSpectator(viewer) {
		v.IsSpectator = true
	}

	return v
}
