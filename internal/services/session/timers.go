package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// armTimer replaces the entry's timer. Caller holds e.mu.
func (s *Store) armTimer(e *entry, d time.Duration) {
	if e.timer != nil {
		e.timer.Stop()
	}
	if d < 0 {
		d = 0
	}
	e.timerGen++
	gen := e.timerGen
	e.timer = s.clock.AfterFunc(d, func() {
		s.onTimeout(e, gen)
	})
}

// stopTimer cancels the entry's timer. Caller holds e.mu.
func (s *Store) stopTimer(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	// A callback already running sees a stale generation and does nothing
	e.timerGen++
}

// armPhaseTimer arms the timer matching the session's status with whatever
// time remains in the phase. Caller holds e.mu.
func (s *Store) armPhaseTimer(e *entry) {
	session := e.session
	var deadline time.Time
	switch session.Status {
	case model.StatusWaiting:
		deadline = session.CreatedAt.Add(session.Options.WaitTimeout)
	case model.StatusActive:
		deadline = session.LastMoveAt.Add(session.Options.MoveTimeout)
	default:
		s.stopTimer(e)
		return
	}
	s.armTimer(e, deadline.Sub(s.clock.Now()))
}

func (s *Store) onTimeout(e *entry, gen uint64) {
	e.mu.Lock()
	if e.evicted || e.timerGen != gen || e.session.Status.IsTerminal() {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	phase := e.session.Status
	if _, err := s.abandonLocked(e, ""); err != nil {
		e.mu.Unlock()
		return
	}
	snapshot := e.session.Clone()
	e.mu.Unlock()

	s.logger.Info("session timed out",
		slog.String("session_id", string(snapshot.ID)),
		slog.String("phase", string(phase)),
	)

	if n := s.currentNotifier(); n != nil {
		n.SessionAbandoned(context.Background(), snapshot)
	}
}
