package model

import "time"

// EventType identifies a message pushed to clients without a request
type EventType string

const (
	// Connection events
	EventConnectionEstablished EventType = "connection_established"
	EventSessionReplaced       EventType = "session_replaced"

	// Session events
	EventGameCreated   EventType = "game_created"
	EventPlayerJoined  EventType = "player_joined"
	EventMoveMade      EventType = "move_made"
	EventGameEnded     EventType = "game_ended"
	EventGameAbandoned EventType = "game_abandoned"
)

// Event is the envelope for pushed messages. Broadcasts carry no correlation
// id; the session they concern is identified inside Data.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the given time
func NewEvent(t EventType, data any, now time.Time) Event {
	return Event{Type: t, Data: data, Timestamp: now}
}

// PlayerJoinedPayload is sent when the second player takes slot B
type PlayerJoinedPayload struct {
	SessionID SessionID   `json:"sessionId"`
	PlayerID  PlayerID    `json:"playerId"`
	State     SessionView `json:"gameState"`
}

// MoveMadePayload is sent after every applied move
type MoveMadePayload struct {
	SessionID SessionID   `json:"sessionId"`
	Move      Move        `json:"move"`
	State     SessionView `json:"gameState"`
}

// GameEndedPayload is sent when a session is decided by a win or a draw
type GameEndedPayload struct {
	SessionID   SessionID   `json:"sessionId"`
	Winner      PlayerID    `json:"winner,omitempty"`
	Draw        bool        `json:"draw,omitempty"`
	WinningLine []int       `json:"winningLine,omitempty"`
	FinalState  SessionView `json:"finalState"`
}

// GameAbandonedPayload is sent when a session is forfeited or times out.
// AbandonedBy is empty when no player caused it.
type GameAbandonedPayload struct {
	SessionID   SessionID   `json:"sessionId"`
	AbandonedBy PlayerID    `json:"abandonedBy,omitempty"`
	Winner      PlayerID    `json:"winner,omitempty"`
	Reason      string      `json:"reason"`
	State       SessionView `json:"gameState"`
}

// GameCreatedPayload is sent to the creator of a session
type GameCreatedPayload struct {
	SessionID SessionID   `json:"sessionId"`
	State     SessionView `json:"gameState"`
}

// SessionReplacedPayload is sent to a connection demoted by a newer login
type SessionReplacedPayload struct {
	Message string `json:"message"`
}

// Abandonment reasons
const (
	ReasonForfeit    = "forfeit"
	ReasonTimeout    = "timeout"
	ReasonDisconnect = "disconnect"
)
