package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/mcoot/tictactoe-go/internal/api/apierr"
	"github.com/mcoot/tictactoe-go/internal/connection"
	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/services/session"
)

// AuthListener is told when a player authenticates on a connection
type AuthListener interface {
	PlayerAuthenticated(player model.PlayerID)
}

// Stats combines session and connection statistics
type Stats struct {
	Sessions    session.Stats    `json:"sessions"`
	Connections connection.Stats `json:"connections"`
}

// Call carries the context of one request through its handler
type Call struct {
	ConnID    string
	Player    model.PlayerID
	Type      string
	RequestID string

	broadcasts []broadcast
	unlock     func()
}

type broadcast struct {
	sessionID model.SessionID
	event     model.Event
	exclude   []string
}

// broadcast queues an event for the session's subscribers. Queued events
// are sent after the response to the requester.
func (c *Call) broadcast(sessionID model.SessionID, event model.Event, exclude ...string) {
	c.broadcasts = append(c.broadcasts, broadcast{sessionID: sessionID, event: event, exclude: exclude})
}

// release frees the session held by the call, if any
func (c *Call) release() {
	if c.unlock != nil {
		c.unlock()
		c.unlock = nil
	}
}

type handlerFunc func(ctx context.Context, call *Call) (any, error)

type route struct {
	requiresAuth bool
	// bind decodes and validates the payload, returning the handler to run
	bind func(raw json.RawMessage) (handlerFunc, error)
}

// Dispatcher validates inbound messages and routes them to session operations
type Dispatcher struct {
	sessions *session.Store
	registry *connection.Registry
	verifier IdentityVerifier
	clock    clock.Clock
	logger   *slog.Logger
	schema   *schema
	routes   map[string]route
	order    *sequencer

	listenerMu sync.RWMutex
	listener   AuthListener
}

// NewDispatcher creates a dispatcher and registers it for timer-driven session events
func NewDispatcher(
	sessions *session.Store,
	registry *connection.Registry,
	verifier IdentityVerifier,
	clock clock.Clock,
	logger *slog.Logger,
) *Dispatcher {
	if verifier == nil {
		verifier = TrustedIdentity{}
	}
	d := &Dispatcher{
		sessions: sessions,
		registry: registry,
		verifier: verifier,
		clock:    clock,
		logger:   logger.With(slog.String("component", "dispatcher")),
		schema:   newSchema(),
		routes:   make(map[string]route),
		order:    newSequencer(),
	}
	d.registerRoutes()
	sessions.SetNotifier(d)
	return d
}

// on registers a typed handler for a message type
func on[T any](d *Dispatcher, msgType string, requiresAuth bool, h func(ctx context.Context, call *Call, req T) (any, error)) {
	d.routes[msgType] = route{
		requiresAuth: requiresAuth,
		bind: func(raw json.RawMessage) (handlerFunc, error) {
			req, err := decode[T](d.schema, raw)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context, call *Call) (any, error) {
				return h(ctx, call, req)
			}, nil
		},
	}
}

func (d *Dispatcher) registerRoutes() {
	on(d, TypeAuthenticate, false, d.handleAuthenticate)
	on(d, TypePing, false, d.handlePing)
	on(d, TypeCreateGame, true, d.handleCreateGame)
	on(d, TypeJoinGame, true, d.handleJoinGame)
	on(d, TypeMakeMove, true, d.handleMakeMove)
	on(d, TypeSubscribeGame, true, d.handleSubscribeGame)
	on(d, TypeUnsubscribeGame, true, d.handleUnsubscribeGame)
	on(d, TypeAbandonGame, true, d.handleAbandonGame)
	on(d, TypeGetGameState, true, d.handleGetGameState)
	on(d, TypeGetPlayerGames, true, d.handleGetPlayerGames)
	on(d, TypeGetStats, true, d.handleGetStats)
}

// SetAuthListener registers the receiver of authentication notices
func (d *Dispatcher) SetAuthListener(l AuthListener) {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()
	d.listener = l
}

func (d *Dispatcher) authListener() AuthListener {
	d.listenerMu.RLock()
	defer d.listenerMu.RUnlock()
	return d.listener
}

// Dispatch handles one inbound frame from a registered connection.
// Every failure is reported to the sender as an error message.
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, frame []byte) {
	handle, ok := d.registry.Get(connID)
	if !ok {
		d.logger.Debug("dropping frame for unknown connection", slog.String("connection_id", connID))
		return
	}

	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		d.SendError(connID, "", apierr.New(apierr.KindValidation, apierr.CodeInvalidJSON, "Invalid JSON format"))
		return
	}
	if req.Type == "" || req.ID == "" {
		d.SendError(connID, req.ID, apierr.New(apierr.KindValidation, apierr.CodeInvalidMessage, "Message must include type and id"))
		return
	}

	rt, ok := d.routes[req.Type]
	if !ok {
		d.SendError(connID, req.ID, apierr.New(apierr.KindValidation, apierr.CodeUnknownMessageType,
			fmt.Sprintf("Unknown message type: %s", req.Type)))
		return
	}

	run, err := rt.bind(req.Data)
	if err != nil {
		d.SendError(connID, req.ID, apierr.FromError(err))
		return
	}

	if rt.requiresAuth && !handle.IsAuthenticated() {
		d.SendError(connID, req.ID, apierr.New(apierr.KindAuthRequired, apierr.CodeAuthRequired, "This action requires authentication"))
		return
	}

	call := &Call{
		ConnID:    connID,
		Player:    handle.PlayerID(),
		Type:      req.Type,
		RequestID: req.ID,
	}
	defer call.release()

	data, err := d.invoke(ctx, run, call)
	if err != nil {
		d.fail(call, err)
		return
	}

	d.registry.SendToConnection(connID, Response{
		Type:      TypeResponse,
		ID:        req.ID,
		Data:      data,
		Timestamp: d.clock.Now(),
	})
	for _, b := range call.broadcasts {
		d.registry.BroadcastToSession(b.sessionID, b.event, b.exclude...)
	}
}

// hold serializes the rest of the call with every other change to the
// session. The session is released once the response and broadcasts are sent.
func (d *Dispatcher) hold(call *Call, id model.SessionID) {
	call.release()
	call.unlock = d.order.lock(id)
}

// invoke runs the handler, converting a panic into an error
func (d *Dispatcher) invoke(ctx context.Context, run handlerFunc, call *Call) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic",
				slog.String("type", call.Type),
				slog.String("connection_id", call.ConnID),
				slog.String("player_id", string(call.Player)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			data, err = nil, apierr.NewInternalError()
		}
	}()
	return run(ctx, call)
}

func (d *Dispatcher) fail(call *Call, err error) {
	e := apierr.FromError(err)
	if e.Kind == apierr.KindInternal {
		d.logger.Error("request failed",
			slog.String("type", call.Type),
			slog.String("connection_id", call.ConnID),
			slog.String("player_id", string(call.Player)),
			slog.String("error", err.Error()),
		)
	}
	d.SendError(call.ConnID, call.RequestID, e)
}

// SendError sends an error message to one connection
func (d *Dispatcher) SendError(connID, requestID string, e *apierr.Error) {
	d.registry.SendToConnection(connID, ErrorMessage{
		Type:      TypeError,
		ID:        requestID,
		Error:     e.API(),
		Timestamp: d.clock.Now(),
	})
}

// Stats returns the combined session and connection statistics
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sessions:    d.sessions.Stats(),
		Connections: d.registry.Stats(),
	}
}

// SessionAbandoned broadcasts a timer-driven abandonment
func (d *Dispatcher) SessionAbandoned(ctx context.Context, s *model.Session) {
	unlock := d.order.lock(s.ID)
	defer unlock()
	d.registry.BroadcastToSession(s.ID, d.abandonedEvent(s, "", model.ReasonTimeout))
}

// AbandonPlayerSessions abandons every unfinished session the player occupies,
// with the opponent as winner. It returns the number of sessions abandoned.
func (d *Dispatcher) AbandonPlayerSessions(ctx context.Context, player model.PlayerID) int {
	abandoned := 0
	for _, id := range d.sessions.ActiveSessionsFor(player) {
		if d.abandonFor(ctx, id, player) {
			abandoned++
		}
	}
	return abandoned
}

func (d *Dispatcher) abandonFor(ctx context.Context, id model.SessionID, player model.PlayerID) bool {
	unlock := d.order.lock(id)
	defer unlock()

	s, changed, err := d.sessions.Abandon(ctx, id, player)
	if err != nil {
		d.logger.Warn("failed to abandon session",
			slog.String("session_id", string(id)),
			slog.String("player_id", string(player)),
			slog.String("error", err.Error()),
		)
		return false
	}
	if !changed {
		return false
	}
	d.registry.BroadcastToSession(id, d.abandonedEvent(s, player, model.ReasonDisconnect))
	return true
}

func (d *Dispatcher) abandonedEvent(s *model.Session, by model.PlayerID, reason string) model.Event {
	return model.NewEvent(model.EventGameAbandoned, model.GameAbandonedPayload{
		SessionID:   s.ID,
		AbandonedBy: by,
		Winner:      s.Outcome.Winner,
		Reason:      reason,
		State:       s.ViewFor(""),
	}, d.clock.Now())
}
