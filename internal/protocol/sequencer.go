package protocol

import (
	"sync"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// sequencer serializes the change-then-broadcast steps of each session, so
// every subscriber receives a session's events in the order it changed.
// Locks are created on demand and dropped once nobody holds or waits on them.
type sequencer struct {
	mu    sync.Mutex
	locks map[model.SessionID]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSequencer() *sequencer {
	return &sequencer{locks: make(map[model.SessionID]*sessionLock)}
}

// lock blocks until the session is free and returns its unlock function
func (q *sequencer) lock(id model.SessionID) func() {
	q.mu.Lock()
	l, ok := q.locks[id]
	if !ok {
		l = &sessionLock{}
		q.locks[id] = l
	}
	l.refs++
	q.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		q.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(q.locks, id)
		}
		q.mu.Unlock()
	}
}

func (q *sequencer) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.locks)
}
