package factory

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-go/internal/connection"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/protocol"
	"github.com/mcoot/tictactoe-go/internal/testutil"
)

type IntegrationSuite struct {
	suite.Suite
	app     *TestApp
	ctx     context.Context
	senders map[string]*testutil.Sender
	nextReq int
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
	s.senders = make(map[string]*testutil.Sender)
	s.nextReq = 0
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Shutdown(s.ctx))
}

func (s *IntegrationSuite) login(connID, player string) *testutil.Sender {
	sender := testutil.NewSender()
	s.Require().NoError(s.app.Registry.Register(connection.NewHandle(connID, sender, s.app.MockClock.Now())))
	s.senders[connID] = sender

	resp := s.request(connID, protocol.TypeAuthenticate, map[string]any{"playerId": player})
	s.Require().Equal(protocol.TypeResponse, resp["type"])
	sender.Reset()
	return sender
}

func (s *IntegrationSuite) request(connID, msgType string, data any) map[string]any {
	s.nextReq++
	reqID := strconv.Itoa(s.nextReq)

	raw, err := json.Marshal(data)
	s.Require().NoError(err)
	frame, err := json.Marshal(protocol.Request{Type: msgType, ID: reqID, Data: raw})
	s.Require().NoError(err)
	s.app.Dispatcher.Dispatch(s.ctx, connID, frame)

	for _, msg := range s.senders[connID].Messages() {
		if msg["id"] == reqID {
			return msg
		}
	}
	s.FailNow("no reply", "request %s got no reply", reqID)
	return nil
}

func data(msg map[string]any) map[string]any {
	d, _ := msg["data"].(map[string]any)
	return d
}

// Test: a full game from creation to a draw, with a spectator watching
func (s *IntegrationSuite) TestDrawnGameFlow() {
	alice := s.login("c1", "alice")
	bob := s.login("c2", "bob")
	carol := s.login("c3", "carol")

	s.app.MockRandom.QueueID("game-1")
	resp := s.request("c1", protocol.TypeCreateGame, map[string]any{})
	s.Require().Equal(protocol.TypeResponse, resp["type"])

	resp = s.request("c2", protocol.TypeJoinGame, map[string]any{"gameId": "game-1"})
	s.Require().Equal(protocol.TypeResponse, resp["type"])

	resp = s.request("c3", protocol.TypeSubscribeGame, map[string]any{"gameId": "game-1"})
	s.Require().Equal(protocol.TypeResponse, resp["type"])
	carol.Reset()

	conns := map[int]string{0: "c1", 1: "c2"}
	for i, cell := range []int{0, 1, 2, 4, 3, 5, 7, 6, 8} {
		resp = s.request(conns[i%2], protocol.TypeMakeMove, map[string]any{"gameId": "game-1", "position": cell})
		s.Require().Equal(protocol.TypeResponse, resp["type"], "move %d: %v", i, resp)
	}

	for _, sender := range []*testutil.Sender{alice, bob, carol} {
		var ended []map[string]any
		for _, msg := range sender.Messages() {
			if msg["type"] == string(model.EventGameEnded) {
				ended = append(ended, msg)
			}
		}
		s.Require().Len(ended, 1)
		s.Equal(true, data(ended[0])["draw"])
	}

	s.Require().NoError(s.app.Sessions.Flush(s.ctx))

	stored, err := s.app.MemStore.LoadSnapshot(s.ctx, "game-1")
	s.Require().NoError(err)
	s.Equal(model.StatusCompleted, stored.Status)
	s.True(stored.Outcome.Draw)
	s.Len(stored.Moves, 9)

	for _, player := range []model.PlayerID{"alice", "bob"} {
		stats, err := s.app.MemStore.GetPlayerStats(s.ctx, player)
		s.Require().NoError(err)
		s.Equal(1, stats.GamesPlayed)
		s.Equal(1, stats.GamesDrawn)
	}

	resp = s.request("c3", protocol.TypeGetStats, map[string]any{})
	sessions := data(resp)["stats"].(map[string]any)["sessions"].(map[string]any)
	s.Equal(float64(1), sessions["gamesCompleted"])
	s.Equal(float64(9), sessions["totalMoves"])
}

// Test: a disconnected player's sessions are abandoned in favour of the opponent
func (s *IntegrationSuite) TestAbandonOnDisconnect() {
	s.login("c1", "alice")
	bob := s.login("c2", "bob")

	s.app.MockRandom.QueueID("game-1")
	s.request("c1", protocol.TypeCreateGame, map[string]any{})
	s.request("c2", protocol.TypeJoinGame, map[string]any{"gameId": "game-1"})
	bob.Reset()

	s.Equal(1, s.app.Dispatcher.AbandonPlayerSessions(s.ctx, "alice"))

	last := bob.Last()
	s.Require().NotNil(last)
	s.Equal(string(model.EventGameAbandoned), last["type"])
	s.Equal("bob", data(last)["winner"])
	s.Equal("disconnect", data(last)["reason"])

	session, err := s.app.Sessions.Get(s.ctx, "game-1")
	s.Require().NoError(err)
	s.Equal(model.StatusAbandoned, session.Status)
}

func (s *IntegrationSuite) TestReadinessChecksStore() {
	s.Require().NoError(s.app.Store.Ping(s.ctx))
	s.Same(s.app.Store, s.app.Cache)
	s.Equal(0, s.app.Transport.ConnectionCount())
}
