package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// ErrCacheMiss is returned by Cache.Get when no entry exists
var ErrCacheMiss = errors.New("cache miss")

// Store durably records session snapshots, moves, and player statistics
type Store interface {
	// Session operations
	SaveSnapshot(ctx context.Context, session *model.Session) error
	// LoadSnapshot returns model.ErrSessionNotFound if no snapshot exists
	LoadSnapshot(ctx context.Context, id model.SessionID) (*model.Session, error)
	// ListPlayerSessions returns the most recently created sessions the player occupied
	ListPlayerSessions(ctx context.Context, player model.PlayerID, limit int) ([]*model.Session, error)

	// Move operations
	AppendMove(ctx context.Context, id model.SessionID, move model.Move) error

	// Player statistics operations
	UpdatePlayerStats(ctx context.Context, player model.PlayerID, delta model.StatsDelta) error
	// GetPlayerStats returns zero stats for a player with no recorded games
	GetPlayerStats(ctx context.Context, player model.PlayerID) (model.PlayerStats, error)

	Ping(ctx context.Context) error
	Close() error
}

// Cache holds serialized copies of live sessions
type Cache interface {
	// Put stores data under the session id. A zero ttl means no expiry.
	Put(ctx context.Context, id model.SessionID, data []byte, ttl time.Duration) error
	// Get returns ErrCacheMiss if the entry is absent or expired
	Get(ctx context.Context, id model.SessionID) ([]byte, error)
	Delete(ctx context.Context, id model.SessionID) error

	Ping(ctx context.Context) error
	Close() error
}
