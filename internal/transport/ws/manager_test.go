package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-go/internal/connection"
	"github.com/mcoot/tictactoe-go/internal/dependencies/mocks"
	"github.com/mcoot/tictactoe-go/internal/dependencies/random"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/protocol"
	"github.com/mcoot/tictactoe-go/internal/services/session"
	"github.com/mcoot/tictactoe-go/internal/storage/memory"
	"github.com/mcoot/tictactoe-go/internal/testutil"
)

const readTimeout = 2 * time.Second

type testClient struct {
	s    *ManagerSuite
	ws   *websocket.Conn
	next int
}

// read returns the next message from the server
func (c *testClient) read() map[string]any {
	c.s.T().Helper()
	c.s.Require().NoError(c.ws.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := c.ws.ReadMessage()
	c.s.Require().NoError(err)
	var msg map[string]any
	c.s.Require().NoError(json.Unmarshal(data, &msg))
	return msg
}

// readType skips messages until one of the given type arrives
func (c *testClient) readType(msgType string) map[string]any {
	c.s.T().Helper()
	for {
		msg := c.read()
		if msg["type"] == msgType {
			return msg
		}
	}
}

func (c *testClient) write(frame string) {
	c.s.Require().NoError(c.ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// request sends a message and waits for the reply carrying its id
func (c *testClient) request(msgType string, data any) map[string]any {
	c.s.T().Helper()
	c.next++
	id := msgType + "-" + strconv.Itoa(c.next)
	c.s.Require().NoError(c.ws.WriteJSON(map[string]any{"type": msgType, "id": id, "data": data}))
	for {
		msg := c.read()
		if msg["id"] == id {
			return msg
		}
	}
}

// expectClose waits for the server to close the connection and returns the close code
func (c *testClient) expectClose() int {
	c.s.T().Helper()
	c.s.Require().NoError(c.ws.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		_, _, err := c.ws.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		c.s.Require().True(errors.As(err, &closeErr), "expected close error, got %v", err)
		return closeErr.Code
	}
}

type ManagerSuite struct {
	suite.Suite
	cfg        Config
	clock      *mocks.MockClock
	sessions   *session.Store
	registry   *connection.Registry
	dispatcher *protocol.Dispatcher
	manager    *Manager
	server     *httptest.Server
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.cfg = DefaultConfig()
	s.cfg.PingInterval = time.Minute
	s.cfg.ReconnectGrace = time.Minute
	s.cfg.ShutdownTimeout = time.Second
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

// start builds the stack with the current config and serves it
func (s *ManagerSuite) start() {
	logger := testutil.NopLogger()
	store := memory.NewWithClock(s.clock)
	s.sessions = session.New(session.DefaultConfig(), store, store, s.clock, random.New(), logger)
	s.registry = connection.NewRegistry(s.clock, logger)
	s.dispatcher = protocol.NewDispatcher(s.sessions, s.registry, protocol.TrustedIdentity{}, s.clock, logger)
	s.manager = NewManager(s.cfg, s.registry, s.dispatcher, s.sessions, s.clock, random.New(), logger)
	s.dispatcher.SetAuthListener(s.manager)
	s.server = httptest.NewServer(s.manager)
}

func (s *ManagerSuite) TearDownTest() {
	if s.manager == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.NoError(s.manager.Shutdown(ctx))
	s.server.Close()
	s.NoError(s.sessions.Close(ctx))
	s.manager = nil
}

func (s *ManagerSuite) dial() *testClient {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return &testClient{s: s, ws: conn}
}

// connect dials and consumes the welcome message
func (s *ManagerSuite) connect() (*testClient, string) {
	c := s.dial()
	welcome := c.read()
	s.Require().Equal("connection_established", welcome["type"])
	return c, welcome["connectionId"].(string)
}

func (s *ManagerSuite) login(player string) *testClient {
	c, _ := s.connect()
	resp := c.request(protocol.TypeAuthenticate, map[string]any{"playerId": player})
	s.Require().Equal("response", resp["type"])
	return c
}

// startGame has alice create a session and bob join it
func (s *ManagerSuite) startGame() (*testClient, *testClient, string) {
	alice := s.login("alice")
	bob := s.login("bob")

	created := alice.request(protocol.TypeCreateGame, map[string]any{})
	s.Require().Equal("response", created["type"])
	gameID := created["data"].(map[string]any)["game"].(map[string]any)["sessionId"].(string)

	joined := bob.request(protocol.TypeJoinGame, map[string]any{"gameId": gameID})
	s.Require().Equal("response", joined["type"])
	return alice, bob, gameID
}

func (s *ManagerSuite) waitFor(cond func() bool, msg string) {
	s.Require().Eventually(cond, readTimeout, 10*time.Millisecond, msg)
}

func (s *ManagerSuite) TestWelcome() {
	s.start()
	c := s.dial()

	msg := c.read()
	s.Equal("connection_established", msg["type"])
	s.NotEmpty(msg["connectionId"])

	info := msg["serverInfo"].(map[string]any)
	s.Equal(Version, info["version"])
	s.Equal(float64(s.cfg.MaxMessageSize), info["maxMessageSize"])
	s.Equal(float64(s.cfg.PingInterval.Milliseconds()), info["pingInterval"])

	s.waitFor(func() bool { return s.registry.Stats().Total == 1 }, "connection registered")
}

func (s *ManagerSuite) TestRequestResponse() {
	s.start()
	c, _ := s.connect()

	resp := c.request(protocol.TypePing, nil)
	s.Equal("response", resp["type"])
	s.Equal(true, resp["data"].(map[string]any)["pong"])
}

func (s *ManagerSuite) TestDispatchErrorsReachClient() {
	s.start()
	c, _ := s.connect()

	c.write("not json")
	msg := c.read()
	s.Equal("error", msg["type"])
	s.Equal("INVALID_JSON", msg["error"].(map[string]any)["code"])
}

func (s *ManagerSuite) TestMessageTooLarge() {
	s.cfg.MaxMessageSize = 64
	s.start()
	c, _ := s.connect()

	c.write(`{"type":"ping","id":"1","data":{"padding":"` + strings.Repeat("x", 100) + `"}}`)
	msg := c.read()
	s.Equal("error", msg["type"])
	s.Equal("MESSAGE_TOO_LARGE", msg["error"].(map[string]any)["code"])

	// The connection survives
	s.Equal("response", c.request(protocol.TypePing, nil)["type"])
}

func (s *ManagerSuite) TestOversizeBeyondReadLimitDisconnects() {
	s.cfg.MaxMessageSize = 64
	s.start()
	c, _ := s.connect()

	c.write(strings.Repeat("x", int(s.cfg.readLimit())+1))
	s.Equal(websocket.CloseMessageTooBig, c.expectClose())
	s.waitFor(func() bool { return s.manager.ConnectionCount() == 0 }, "connection released")
}

func (s *ManagerSuite) TestRateLimit() {
	s.cfg.RateLimit = 3
	s.start()
	c, _ := s.connect()

	for i := 0; i < 3; i++ {
		s.Equal("response", c.request(protocol.TypePing, nil)["type"])
	}
	c.write(`{"type":"ping","id":"over"}`)
	msg := c.read()
	s.Equal("error", msg["type"])
	s.Equal("RATE_LIMIT_EXCEEDED", msg["error"].(map[string]any)["code"])

	// Still inside the window
	s.clock.Advance(s.cfg.RateWindow / 2)
	c.write(`{"type":"ping","id":"still-over"}`)
	s.Equal("RATE_LIMIT_EXCEEDED", c.read()["error"].(map[string]any)["code"])

	s.clock.Advance(s.cfg.RateWindow / 2)
	s.Equal("response", c.request(protocol.TypePing, nil)["type"])
}

func (s *ManagerSuite) TestCapacity() {
	s.cfg.MaxConnections = 1
	s.start()
	s.connect()

	extra := s.dial()
	s.Equal(websocket.ClosePolicyViolation, extra.expectClose())
	s.Equal(1, s.manager.ConnectionCount())
}

func (s *ManagerSuite) TestDisconnectUnregisters() {
	s.start()
	c, id := s.connect()
	s.waitFor(func() bool { return s.registry.Stats().Total == 1 }, "registered")

	s.Require().NoError(c.ws.Close())
	s.waitFor(func() bool {
		_, ok := s.registry.Get(id)
		return !ok && s.manager.ConnectionCount() == 0
	}, "unregistered")
	s.Equal(0, s.manager.limiter.size())
}

func (s *ManagerSuite) TestMissedPongTerminates() {
	s.cfg.PingInterval = 50 * time.Millisecond
	s.cfg.PongTimeout = 50 * time.Millisecond
	s.start()

	// Never reading means never answering pings
	s.dial()
	s.waitFor(func() bool { return s.manager.ConnectionCount() == 1 }, "connected")
	s.waitFor(func() bool { return s.manager.ConnectionCount() == 0 }, "terminated")
}

func (s *ManagerSuite) TestPongKeepsConnectionAlive() {
	s.cfg.PingInterval = 50 * time.Millisecond
	s.cfg.PongTimeout = 50 * time.Millisecond
	s.start()

	c := s.dial()
	go func() {
		for {
			if _, _, err := c.ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(300 * time.Millisecond)
	s.Equal(1, s.manager.ConnectionCount())
}

func (s *ManagerSuite) TestGraceExpiryAbandonsSessions() {
	s.start()
	alice, bob, gameID := s.startGame()

	s.Require().NoError(alice.ws.Close())
	s.waitFor(func() bool { return s.manager.PendingGrace() == 1 }, "grace armed")

	s.clock.Advance(s.cfg.ReconnectGrace)

	msg := bob.readType(string(model.EventGameAbandoned))
	data := msg["data"].(map[string]any)
	s.Equal(gameID, data["sessionId"])
	s.Equal("bob", data["winner"])
	s.Equal(model.ReasonDisconnect, data["reason"])
	s.Equal(0, s.manager.PendingGrace())
}

func (s *ManagerSuite) TestReconnectWithinGrace() {
	s.start()
	alice, _, gameID := s.startGame()

	s.Require().NoError(alice.ws.Close())
	s.waitFor(func() bool { return s.manager.PendingGrace() == 1 }, "grace armed")

	back := s.login("alice")
	s.Equal(0, s.manager.PendingGrace())

	s.clock.Advance(s.cfg.ReconnectGrace)
	state := back.request(protocol.TypeGetGameState, map[string]any{"gameId": gameID})
	s.Equal("active", state["data"].(map[string]any)["game"].(map[string]any)["status"])
}

func (s *ManagerSuite) TestNoGraceWithoutSessions() {
	s.start()
	c := s.login("alice")

	s.Require().NoError(c.ws.Close())
	s.waitFor(func() bool { return s.manager.ConnectionCount() == 0 }, "disconnected")
	s.Equal(0, s.manager.PendingGrace())
}

func (s *ManagerSuite) TestShutdown() {
	s.start()
	a, _ := s.connect()
	b, _ := s.connect()

	done := make(chan error, 1)
	go func() { done <- s.manager.Shutdown(context.Background()) }()

	s.Equal(websocket.CloseGoingAway, a.expectClose())
	s.Equal(websocket.CloseGoingAway, b.expectClose())
	s.Require().NoError(<-done)
	s.Equal(0, s.manager.ConnectionCount())

	late := s.dial()
	s.Equal(websocket.CloseGoingAway, late.expectClose())
}

func (s *ManagerSuite) TestShutdownForceClosesUnresponsiveClients() {
	s.cfg.ShutdownTimeout = 100 * time.Millisecond
	s.start()

	// A client that never reads never answers the close handshake
	s.dial()
	s.waitFor(func() bool { return s.manager.ConnectionCount() == 1 }, "connected")

	s.Require().NoError(s.manager.Shutdown(context.Background()))
	s.waitFor(func() bool { return s.manager.ConnectionCount() == 0 }, "force closed")
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.SendBuffer = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero send buffer")
	}
}
