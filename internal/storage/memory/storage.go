package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

// Storage is an in-memory implementation of both the Store and Cache interfaces
type Storage struct {
	mu    sync.RWMutex
	clock clock.Clock

	sessions map[model.SessionID]*model.Session
	moves    map[model.SessionID][]model.Move
	stats    map[model.PlayerID]model.PlayerStats
	cache    map[model.SessionID]cacheEntry
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// New creates a new in-memory storage instance
func New() *Storage {
	return NewWithClock(clock.New())
}

// NewWithClock creates an in-memory storage whose cache TTLs follow the given clock
func NewWithClock(clk clock.Clock) *Storage {
	return &Storage{
		clock:    clk,
		sessions: make(map[model.SessionID]*model.Session),
		moves:    make(map[model.SessionID][]model.Move),
		stats:    make(map[model.PlayerID]model.PlayerStats),
		cache:    make(map[model.SessionID]cacheEntry),
	}
}

// Ensure Storage implements the interfaces
var (
	_ storage.Store = (*Storage)(nil)
	_ storage.Cache = (*Storage)(nil)
)

// Session operations

func (s *Storage) SaveSnapshot(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *Storage) LoadSnapshot(ctx context.Context, id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) ListPlayerSessions(ctx context.Context, player model.PlayerID, limit int) ([]*model.Session, error) {
	s.mu.RLock()
	var result []*model.Session
	for _, session := range s.sessions {
		if session.IsPlayer(player) {
			result = append(result, session.Clone())
		}
	}
	s.mu.RUnlock()
	return storage.SortByCreatedDesc(result, limit), nil
}

// Move operations

func (s *Storage) AppendMove(ctx context.Context, id model.SessionID, move model.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.moves[id] {
		if m.Seq == move.Seq {
			return nil
		}
	}
	s.moves[id] = append(s.moves[id], move)
	return nil
}

// Moves returns the recorded move log for a session
func (s *Storage) Moves(id model.SessionID) []model.Move {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.moves[id])
}

// Player statistics operations

func (s *Storage) UpdatePlayerStats(ctx context.Context, player model.PlayerID, delta model.StatsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats[player]
	stats.PlayerID = player
	stats.Apply(delta)
	s.stats[player] = stats
	return nil
}

func (s *Storage) GetPlayerStats(ctx context.Context, player model.PlayerID) (model.PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[player]
	if !ok {
		return model.PlayerStats{PlayerID: player}, nil
	}
	return stats, nil
}

// Cache operations

func (s *Storage) Put(ctx context.Context, id model.SessionID, data []byte, ttl time.Duration) error {
	entry := cacheEntry{data: slices.Clone(data)}
	if ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[id] = entry
	return nil
}

func (s *Storage) Get(ctx context.Context, id model.SessionID) ([]byte, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[id]
	if !ok {
		return nil, storage.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
		delete(s.cache, id)
		return nil, storage.ErrCacheMiss
	}
	return slices.Clone(entry.data), nil
}

func (s *Storage) Delete(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, id)
	return nil
}

// Lifecycle

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

func (s *Storage) Close() error {
	return nil
}
