package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tictactoe-go/internal/api/apierr"
	"github.com/mcoot/tictactoe-go/internal/connection"
	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-go/internal/dependencies/random"
	"github.com/mcoot/tictactoe-go/internal/model"
)

// Version is reported to clients in the welcome message
const Version = "1.0.0"

// Dispatcher handles frames read from connections
type Dispatcher interface {
	Dispatch(ctx context.Context, connID string, frame []byte)
	SendError(connID, requestID string, e *apierr.Error)
	AbandonPlayerSessions(ctx context.Context, player model.PlayerID) int
}

// SessionIndex reports which unfinished sessions a player occupies
type SessionIndex interface {
	ActiveSessionsFor(player model.PlayerID) []model.SessionID
}

// Welcome is the first message sent on every accepted connection
type Welcome struct {
	Type         model.EventType `json:"type"`
	ConnectionID string          `json:"connectionId"`
	ServerInfo   ServerInfo      `json:"serverInfo"`
	Timestamp    time.Time       `json:"timestamp"`
}

// ServerInfo describes the limits a client must respect
type ServerInfo struct {
	Version        string    `json:"version"`
	MaxMessageSize int64     `json:"maxMessageSize"`
	PingInterval   int64     `json:"pingInterval"`
	RateLimit      RateLimit `json:"rateLimit"`
}

// RateLimit is the client form of the per-connection message limit
type RateLimit struct {
	Messages int   `json:"messages"`
	WindowMs int64 `json:"windowMs"`
}

type graceTimer struct {
	timer clock.Timer
	gen   uint64
}

// Manager accepts WebSocket connections, pumps frames to the dispatcher
// and tracks reconnection grace for disconnected players
type Manager struct {
	cfg        Config
	registry   *connection.Registry
	dispatcher Dispatcher
	sessions   SessionIndex
	clock      clock.Clock
	random     random.Random
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	limiter    *rateLimiter

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	conns        map[string]*conn
	shuttingDown bool
	wg           sync.WaitGroup

	graceMu  sync.Mutex
	grace    map[model.PlayerID]graceTimer
	graceGen uint64
}

// NewManager creates a transport manager
func NewManager(
	cfg Config,
	registry *connection.Registry,
	dispatcher Dispatcher,
	sessions SessionIndex,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		sessions:   sessions,
		clock:      clock,
		random:     random,
		logger:     logger.With(slog.String("component", "transport")),
		limiter:    newRateLimiter(clock, cfg.RateLimit, cfg.RateWindow),
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[string]*conn),
		grace:      make(map[model.PlayerID]graceTimer),
	}
	m.upgrader = websocket.Upgrader{
		HandshakeTimeout: cfg.HandshakeTimeout,
		CheckOrigin:      m.checkOrigin,
	}
	return m
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	if len(m.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(m.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// ServeHTTP upgrades the request and serves the connection until it ends
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		m.reject(ws, websocket.CloseGoingAway, "Server shutting down")
		return
	}
	if len(m.conns) >= m.cfg.MaxConnections {
		m.mu.Unlock()
		m.logger.Warn("connection rejected at capacity",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int("max_connections", m.cfg.MaxConnections),
		)
		m.reject(ws, websocket.ClosePolicyViolation, "Server at capacity")
		return
	}
	c := newConn(m.random.ID(), ws, m.cfg.SendBuffer)
	m.conns[c.id] = c
	m.wg.Add(1)
	m.mu.Unlock()

	if err := m.registry.Register(connection.NewHandle(c.id, c, m.clock.Now())); err != nil {
		m.logger.Error("failed to register connection",
			slog.String("connection_id", c.id),
			slog.String("error", err.Error()),
		)
		c.terminate()
		m.release(c)
		return
	}

	m.logger.Info("connection established",
		slog.String("connection_id", c.id),
		slog.String("remote_addr", r.RemoteAddr),
	)

	go m.writeLoop(c)
	m.sendWelcome(c)
	m.readLoop(c)
}

func (m *Manager) reject(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(m.cfg.WriteTimeout))
	_ = ws.Close()
}

func (m *Manager) sendWelcome(c *conn) {
	data, err := json.Marshal(Welcome{
		Type:         model.EventConnectionEstablished,
		ConnectionID: c.id,
		ServerInfo: ServerInfo{
			Version:        Version,
			MaxMessageSize: m.cfg.MaxMessageSize,
			PingInterval:   m.cfg.PingInterval.Milliseconds(),
			RateLimit: RateLimit{
				Messages: m.cfg.RateLimit,
				WindowMs: m.cfg.RateWindow.Milliseconds(),
			},
		},
		Timestamp: m.clock.Now(),
	})
	if err != nil {
		m.logger.Error("failed to marshal welcome", slog.String("error", err.Error()))
		return
	}
	c.Send(data)
}

func (m *Manager) readLoop(c *conn) {
	defer m.disconnect(c)

	c.ws.SetReadLimit(m.cfg.readLimit())
	_ = c.ws.SetReadDeadline(time.Now().Add(m.cfg.readTimeout()))
	c.ws.SetPongHandler(func(string) error {
		m.registry.MarkAlive(c.id, true)
		return c.ws.SetReadDeadline(time.Now().Add(m.cfg.readTimeout()))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Debug("connection read failed",
					slog.String("connection_id", c.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(m.cfg.readTimeout()))
		m.registry.Touch(c.id)

		if int64(len(data)) > m.cfg.MaxMessageSize {
			m.dispatcher.SendError(c.id, "", apierr.New(apierr.KindValidation, apierr.CodeMessageTooLarge,
				fmt.Sprintf("Message exceeds maximum size of %d bytes", m.cfg.MaxMessageSize)))
			continue
		}
		if !m.limiter.Allow(c.id) {
			m.dispatcher.SendError(c.id, "", apierr.New(apierr.KindCapacity, apierr.CodeRateLimitExceeded, "Too many messages"))
			continue
		}

		m.dispatcher.Dispatch(m.ctx, c.id, data)
	}
}

func (m *Manager) writeLoop(c *conn) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				m.logger.Debug("connection write failed",
					slog.String("connection_id", c.id),
					slog.String("error", err.Error()),
				)
				c.terminate()
				return
			}
		case <-ticker.C:
			m.registry.MarkAlive(c.id, false)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.cfg.WriteTimeout)); err != nil {
				c.terminate()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (m *Manager) release(c *conn) {
	m.mu.Lock()
	delete(m.conns, c.id)
	m.mu.Unlock()
	m.wg.Done()
}

func (m *Manager) disconnect(c *conn) {
	c.terminate()
	h, ok := m.registry.Unregister(c.id)
	m.limiter.Forget(c.id)

	m.mu.Lock()
	shuttingDown := m.shuttingDown
	m.mu.Unlock()

	if ok {
		player := h.PlayerID()
		m.logger.Info("connection closed",
			slog.String("connection_id", c.id),
			slog.String("player_id", string(player)),
			slog.Duration("duration", m.clock.Now().Sub(h.ConnectedAt)),
		)
		if player != "" && !shuttingDown && !m.registry.IsPlayerConnected(player) &&
			len(m.sessions.ActiveSessionsFor(player)) > 0 {
			m.armGrace(player)
		}
	}
	m.release(c)
}

// armGrace gives a disconnected player time to return before their
// unfinished sessions are abandoned
func (m *Manager) armGrace(player model.PlayerID) {
	m.graceMu.Lock()
	defer m.graceMu.Unlock()

	if existing, ok := m.grace[player]; ok {
		existing.timer.Stop()
	}
	m.graceGen++
	gen := m.graceGen
	m.grace[player] = graceTimer{
		gen:   gen,
		timer: m.clock.AfterFunc(m.cfg.ReconnectGrace, func() { m.graceExpired(player, gen) }),
	}

	m.logger.Info("reconnection grace started",
		slog.String("player_id", string(player)),
		slog.Duration("grace", m.cfg.ReconnectGrace),
	)
}

func (m *Manager) graceExpired(player model.PlayerID, gen uint64) {
	m.graceMu.Lock()
	current, ok := m.grace[player]
	if !ok || current.gen != gen {
		m.graceMu.Unlock()
		return
	}
	delete(m.grace, player)
	m.graceMu.Unlock()

	if m.registry.IsPlayerConnected(player) {
		return
	}
	n := m.dispatcher.AbandonPlayerSessions(m.ctx, player)
	m.logger.Info("reconnection grace expired",
		slog.String("player_id", string(player)),
		slog.Int("sessions_abandoned", n),
	)
}

// PlayerAuthenticated cancels the player's reconnection grace
func (m *Manager) PlayerAuthenticated(player model.PlayerID) {
	m.graceMu.Lock()
	defer m.graceMu.Unlock()

	if existing, ok := m.grace[player]; ok {
		existing.timer.Stop()
		delete(m.grace, player)
		m.logger.Info("player reconnected within grace", slog.String("player_id", string(player)))
	}
}

// PendingGrace returns the number of players awaiting reconnection
func (m *Manager) PendingGrace() int {
	m.graceMu.Lock()
	defer m.graceMu.Unlock()
	return len(m.grace)
}

// ConnectionCount returns the number of open connections
func (m *Manager) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Shutdown stops accepting connections, asks every client to close and
// waits for them up to the shutdown timeout before closing the rest
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return nil
	}
	m.shuttingDown = true
	conns := make([]*conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	m.logger.Info("closing connections", slog.Int("count", len(conns)))
	for _, c := range conns {
		if err := c.closeWith(websocket.CloseGoingAway, "Server shutting down", m.cfg.WriteTimeout); err != nil {
			c.terminate()
		}
	}

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(drained)
	}()

	timeout := time.NewTimer(m.cfg.ShutdownTimeout)
	defer timeout.Stop()

	var err error
	select {
	case <-drained:
	case <-timeout.C:
		m.forceClose()
	case <-ctx.Done():
		m.forceClose()
		err = ctx.Err()
	}

	m.stopGrace()
	m.cancel()
	return err
}

func (m *Manager) forceClose() {
	m.mu.Lock()
	remaining := make([]*conn, 0, len(m.conns))
	for _, c := range m.conns {
		remaining = append(remaining, c)
	}
	m.mu.Unlock()

	if len(remaining) > 0 {
		m.logger.Warn("force closing connections", slog.Int("count", len(remaining)))
	}
	for _, c := range remaining {
		c.terminate()
	}
}

func (m *Manager) stopGrace() {
	m.graceMu.Lock()
	defer m.graceMu.Unlock()
	for player, g := range m.grace {
		g.timer.Stop()
		delete(m.grace, player)
	}
}
