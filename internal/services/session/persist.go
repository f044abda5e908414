package session

import (
	"context"
	"log/slog"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

// The helpers below run under the entry lock so writes reach the
// persister in the order the session changed. None of them block.

func (s *Store) persistSnapshot(session *model.Session) {
	snapshot := session.Clone()
	s.enqueue("save_snapshot", snapshot.ID, true, func(ctx context.Context) error {
		return s.store.SaveSnapshot(ctx, snapshot)
	})
	s.persistCache(snapshot)
}

func (s *Store) persistCache(session *model.Session) {
	data, err := storage.EncodeSession(session)
	if err != nil {
		s.logger.Error("failed to encode session",
			slog.String("session_id", string(session.ID)),
			slog.String("error", err.Error()),
		)
		return
	}
	id := session.ID
	s.enqueue("cache_put", id, true, func(ctx context.Context) error {
		return s.cache.Put(ctx, id, data, s.cfg.CacheTTL)
	})
}

func (s *Store) persistMove(id model.SessionID, move model.Move) {
	s.enqueue("append_move", id, true, func(ctx context.Context) error {
		return s.store.AppendMove(ctx, id, move)
	})
}

func (s *Store) persistStats(session *model.Session) {
	for _, player := range []model.PlayerID{session.PlayerA, session.PlayerB} {
		delta := model.ResultDelta(session, player)
		// Counters only add, so a failed update is not repeated
		s.enqueue("update_stats", session.ID, false, func(ctx context.Context) error {
			return s.store.UpdatePlayerStats(ctx, player, delta)
		})
	}
}

func (s *Store) enqueue(name string, id model.SessionID, retry bool, run func(ctx context.Context) error) {
	err := s.persist.enqueue(writeOp{name: name, sessionID: string(id), run: run, retry: retry})
	if err != nil {
		s.logger.Warn("dropping storage write",
			slog.String("op", name),
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()),
		)
	}
}
