package connection

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-go/internal/model"
)

// ReplacedMessage is sent to a connection whose player logged in elsewhere
const ReplacedMessage = "Your session has been replaced by a new connection"

// activeWindow is how recently a connection must have been seen to count as active
const activeWindow = time.Minute

// Registry tracks live connections, the player bound to each, and the
// sessions each connection follows. It knows nothing about session state.
type Registry struct {
	clock  clock.Clock
	logger *slog.Logger

	mu          sync.RWMutex
	connections map[string]*Handle
	players     map[model.PlayerID]string
	subscribers map[model.SessionID]map[string]struct{}
}

// Stats summarizes the registry
type Stats struct {
	Total         int `json:"totalConnections"`
	Authenticated int `json:"authenticatedConnections"`
	Active        int `json:"activeConnections"`
	Players       int `json:"playerConnections"`
	Sessions      int `json:"gameSubscriptions"`
}

// NewRegistry creates an empty registry
func NewRegistry(clock clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		clock:       clock,
		logger:      logger.With(slog.String("component", "connection_registry")),
		connections: make(map[string]*Handle),
		players:     make(map[model.PlayerID]string),
		subscribers: make(map[model.SessionID]map[string]struct{}),
	}
}

// Register adds a new connection
func (r *Registry) Register(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[h.ID]; exists {
		return model.ErrConnectionExists
	}
	r.connections[h.ID] = h
	return nil
}

// Unregister removes a connection along with its player binding and subscriptions
func (r *Registry) Unregister(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.connections[id]
	if !ok {
		return nil, false
	}
	delete(r.connections, id)

	if player := h.PlayerID(); player != "" && r.players[player] == id {
		delete(r.players, player)
	}
	for sessionID := range h.sessions {
		r.removeSubscriberLocked(sessionID, id)
	}
	h.sessions = make(map[model.SessionID]struct{})
	return h, true
}

// Get returns the handle for a connection id
func (r *Registry) Get(id string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.connections[id]
	return h, ok
}

// Authenticate binds player to the connection. A different connection
// already bound to the player is demoted and told it was replaced.
func (r *Registry) Authenticate(id string, player model.PlayerID) error {
	if player == "" {
		return model.ErrInvalidPlayer
	}

	r.mu.Lock()
	h, ok := r.connections[id]
	if !ok {
		r.mu.Unlock()
		return model.ErrConnectionNotFound
	}

	if previous := h.PlayerID(); previous != "" && previous != player && r.players[previous] == id {
		delete(r.players, previous)
	}

	var replaced *Handle
	if oldID, exists := r.players[player]; exists && oldID != id {
		if old, ok := r.connections[oldID]; ok {
			old.bind("")
			replaced = old
		}
	}

	h.bind(player)
	r.players[player] = id
	r.mu.Unlock()

	if replaced != nil {
		r.logger.Info("connection replaced",
			slog.String("player_id", string(player)),
			slog.String("old_connection_id", replaced.ID),
			slog.String("connection_id", id),
		)
		r.deliver([]*Handle{replaced}, model.NewEvent(
			model.EventSessionReplaced,
			model.SessionReplacedPayload{Message: ReplacedMessage},
			r.clock.Now(),
		))
	}
	return nil
}

// Subscribe adds the connection to the session's subscriber set
func (r *Registry) Subscribe(id string, sessionID model.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.connections[id]
	if !ok {
		return model.ErrConnectionNotFound
	}
	subs, ok := r.subscribers[sessionID]
	if !ok {
		subs = make(map[string]struct{})
		r.subscribers[sessionID] = subs
	}
	subs[id] = struct{}{}
	h.sessions[sessionID] = struct{}{}
	return nil
}

// Unsubscribe removes the connection from the session's subscriber set
func (r *Registry) Unsubscribe(id string, sessionID model.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.connections[id]; ok {
		delete(h.sessions, sessionID)
	}
	r.removeSubscriberLocked(sessionID, id)
}

func (r *Registry) removeSubscriberLocked(sessionID model.SessionID, id string) {
	subs, ok := r.subscribers[sessionID]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(r.subscribers, sessionID)
	}
}

// SubscribersOf returns the connection ids subscribed to the session
func (r *Registry) SubscribersOf(sessionID model.SessionID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.subscribers[sessionID]))
	for id := range r.subscribers[sessionID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SessionsOf returns the sessions the connection is subscribed to
func (r *Registry) SessionsOf(id string) []model.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.connections[id]
	if !ok {
		return nil
	}
	sessions := make([]model.SessionID, 0, len(h.sessions))
	for sessionID := range h.sessions {
		sessions = append(sessions, sessionID)
	}
	slices.Sort(sessions)
	return sessions
}

// PlayerConnection returns the connection bound to the player
func (r *Registry) PlayerConnection(player model.PlayerID) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.players[player]
	if !ok {
		return nil, false
	}
	h, ok := r.connections[id]
	return h, ok
}

// IsPlayerConnected reports whether the player has a live authenticated connection
func (r *Registry) IsPlayerConnected(player model.PlayerID) bool {
	_, ok := r.PlayerConnection(player)
	return ok
}

// Touch records activity on the connection
func (r *Registry) Touch(id string) {
	if h, ok := r.Get(id); ok {
		h.touch(r.clock.Now())
	}
}

// MarkAlive sets the connection's liveness flag
func (r *Registry) MarkAlive(id string, alive bool) {
	if h, ok := r.Get(id); ok {
		h.setAlive(alive)
	}
}

// SendToConnection delivers msg to one connection. It returns the number of failed deliveries.
func (r *Registry) SendToConnection(id string, msg any) int {
	h, ok := r.Get(id)
	if !ok {
		return 1
	}
	return r.deliver([]*Handle{h}, msg)
}

// SendToPlayer delivers msg to the player's current connection
func (r *Registry) SendToPlayer(player model.PlayerID, msg any) int {
	h, ok := r.PlayerConnection(player)
	if !ok {
		return 1
	}
	return r.deliver([]*Handle{h}, msg)
}

// BroadcastToSession delivers msg to every subscriber of the session except the excluded connections
func (r *Registry) BroadcastToSession(sessionID model.SessionID, msg any, exclude ...string) int {
	r.mu.RLock()
	targets := make([]*Handle, 0, len(r.subscribers[sessionID]))
	for id := range r.subscribers[sessionID] {
		if slices.Contains(exclude, id) {
			continue
		}
		if h, ok := r.connections[id]; ok {
			targets = append(targets, h)
		}
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}
	return r.deliver(targets, msg)
}

// deliver encodes msg once and hands it to every target outside the registry lock
func (r *Registry) deliver(targets []*Handle, msg any) int {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to encode message",
			slog.String("error", err.Error()),
		)
		return len(targets)
	}

	failed := 0
	for _, h := range targets {
		if !h.send(data) {
			failed++
		}
	}
	if failed > 0 {
		r.logger.Debug("message delivery failed",
			slog.Int("failed", failed),
			slog.Int("targets", len(targets)),
		)
	}
	return failed
}

// Stats returns a point-in-time summary
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	stats := Stats{
		Total:    len(r.connections),
		Players:  len(r.players),
		Sessions: len(r.subscribers),
	}
	for _, h := range r.connections {
		if h.IsAuthenticated() {
			stats.Authenticated++
		}
		if now.Sub(h.LastActivity()) < activeWindow {
			stats.Active++
		}
	}
	return stats
}
