package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweep evicts finished sessions whose retention window has passed.
// Evicted sessions remain in the persistent store.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		session := e.session
		if session.Status.IsTerminal() && session.CompletedAt != nil &&
			!session.CompletedAt.Add(s.cfg.Retention).After(now) {
			s.stopTimer(e)
			e.evicted = true
			delete(s.sessions, id)
			evicted++
		}
		e.mu.Unlock()
	}

	if evicted > 0 {
		s.logger.Debug("evicted finished sessions",
			slog.Int("count", evicted),
			slog.Int("remaining", len(s.sessions)),
		)
	}
	return evicted
}

// Run sweeps on the configured interval until ctx is cancelled
func (s *Store) Run(ctx context.Context) error {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultConfig().SweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(s.clock.Now())
		}
	}
}
