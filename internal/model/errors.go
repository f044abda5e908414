package model

import "errors"

// Common errors used across the application
var (
	// Session lookup errors
	ErrSessionNotFound = errors.New("session not found")

	// Join errors
	ErrSessionFull = errors.New("session already has two players")
	ErrSelfJoin    = errors.New("cannot join your own session")
	ErrNotJoinable = errors.New("session is not accepting players")

	// Move errors
	ErrSessionNotActive = errors.New("session is not active")
	ErrNotYourTurn      = errors.New("not this player's turn")
	ErrCellOutOfRange   = errors.New("cell index out of range")
	ErrCellOccupied     = errors.New("cell is already occupied")

	// Participation errors
	ErrNotParticipant     = errors.New("player is not in this session")
	ErrSpectatorsDisabled = errors.New("spectators are not allowed in this session")
	ErrSpectatorLimit     = errors.New("maximum spectators reached")
	ErrInvalidPlayer      = errors.New("player id must not be empty")

	// Connection errors
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionExists   = errors.New("connection already registered")
	ErrAuthRequired       = errors.New("authentication required")
	ErrServerAtCapacity   = errors.New("server at capacity")

	// Integrity errors
	ErrInconsistentSession = errors.New("session state is inconsistent")
)
