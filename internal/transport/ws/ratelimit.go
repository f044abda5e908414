package ws

import (
	"sync"
	"time"

	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
)

// rateLimiter counts each connection's messages in a fixed window that
// starts with the first message and resets once it expires. Times come from
// the injected clock.
type rateLimiter struct {
	clock  clock.Clock
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*messageWindow
}

type messageWindow struct {
	start time.Time
	count int
}

func newRateLimiter(clk clock.Clock, limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		clock:   clk,
		limit:   limit,
		window:  window,
		windows: make(map[string]*messageWindow),
	}
}

// Allow reports whether the connection may send another message now
func (r *rateLimiter) Allow(id string) bool {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[id]
	if !ok || !now.Before(w.start.Add(r.window)) {
		r.windows[id] = &messageWindow{start: now, count: 1}
		return true
	}
	if w.count >= r.limit {
		return false
	}
	w.count++
	return true
}

// Forget drops the connection's state
func (r *rateLimiter) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, id)
}

func (r *rateLimiter) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}
