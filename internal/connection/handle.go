package connection

import (
	"sync"
	"time"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// Sender is the transport side of a connection
type Sender interface {
	// Send queues an encoded frame. It returns false if the connection
	// cannot accept the frame right now; the frame is then dropped.
	Send(data []byte) bool
}

// Handle is the registry's record of one live connection
type Handle struct {
	ID          string
	ConnectedAt time.Time

	sender Sender

	mu            sync.RWMutex
	playerID      model.PlayerID
	authenticated bool
	lastActivity  time.Time
	alive         bool

	// guarded by Registry.mu
	sessions map[model.SessionID]struct{}
}

// NewHandle creates an unauthenticated handle
func NewHandle(id string, sender Sender, now time.Time) *Handle {
	return &Handle{
		ID:           id,
		ConnectedAt:  now,
		sender:       sender,
		lastActivity: now,
		alive:        true,
		sessions:     make(map[model.SessionID]struct{}),
	}
}

// PlayerID returns the bound player, or empty if unauthenticated
func (h *Handle) PlayerID() model.PlayerID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.playerID
}

// IsAuthenticated reports whether a player is bound to the connection
func (h *Handle) IsAuthenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.authenticated
}

func (h *Handle) LastActivity() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastActivity
}

func (h *Handle) IsAlive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.alive
}

func (h *Handle) bind(player model.PlayerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playerID = player
	h.authenticated = player != ""
}

func (h *Handle) touch(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity = now
}

func (h *Handle) setAlive(alive bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alive = alive
}

func (h *Handle) send(data []byte) bool {
	if h.sender == nil {
		return false
	}
	return h.sender.Send(data)
}
