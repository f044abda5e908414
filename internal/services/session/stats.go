package session

import (
	"context"
	"log/slog"
	"sort"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

// Stats summarizes the store's sessions and lifetime counters
type Stats struct {
	InMemory       int   `json:"inMemory"`
	Waiting        int   `json:"waiting"`
	Active         int   `json:"active"`
	GamesCreated   int64 `json:"gamesCreated"`
	GamesCompleted int64 `json:"gamesCompleted"`
	GamesAbandoned int64 `json:"gamesAbandoned"`
	TotalMoves     int64 `json:"totalMoves"`
}

// Stats returns a point-in-time summary
func (s *Store) Stats() Stats {
	stats := Stats{
		GamesCreated:   s.gamesCreated.Load(),
		GamesCompleted: s.gamesCompleted.Load(),
		GamesAbandoned: s.gamesAbandoned.Load(),
		TotalMoves:     s.totalMoves.Load(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	stats.InMemory = len(s.sessions)
	for _, e := range s.sessions {
		e.mu.Lock()
		switch e.session.Status {
		case model.StatusWaiting:
			stats.Waiting++
		case model.StatusActive:
			stats.Active++
		}
		e.mu.Unlock()
	}
	return stats
}

// ActiveSessionsFor returns the in-memory unfinished sessions the player occupies
func (s *Store) ActiveSessionsFor(player model.PlayerID) []model.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []model.SessionID
	for id, e := range s.sessions {
		e.mu.Lock()
		if !e.session.Status.IsTerminal() && e.session.IsPlayer(player) {
			ids = append(ids, id)
		}
		e.mu.Unlock()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PlayerSessions returns the player's sessions, newest first, merging live
// sessions with the persistent history
func (s *Store) PlayerSessions(ctx context.Context, player model.PlayerID, limit int) ([]*model.Session, error) {
	if player == "" {
		return nil, model.ErrInvalidPlayer
	}

	byID := make(map[model.SessionID]*model.Session)

	history, err := s.store.ListPlayerSessions(ctx, player, limit)
	if err != nil {
		s.logger.Warn("failed to list stored sessions",
			slog.String("player_id", string(player)),
			slog.String("error", err.Error()),
		)
	}
	for _, session := range history {
		byID[session.ID] = session
	}

	// Live copies are never older than the stored ones
	s.mu.RLock()
	for id, e := range s.sessions {
		e.mu.Lock()
		if e.session.IsPlayer(player) {
			byID[id] = e.session.Clone()
		}
		e.mu.Unlock()
	}
	s.mu.RUnlock()

	sessions := make([]*model.Session, 0, len(byID))
	for _, session := range byID {
		sessions = append(sessions, session)
	}
	return storage.SortByCreatedDesc(sessions, limit), nil
}

// PlayerStats returns the player's recorded results
func (s *Store) PlayerStats(ctx context.Context, player model.PlayerID) (model.PlayerStats, error) {
	return s.store.GetPlayerStats(ctx, player)
}
