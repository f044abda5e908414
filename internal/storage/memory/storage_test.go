package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-go/internal/dependencies/mocks"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

type StorageSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.storage = NewWithClock(s.clock)
	s.ctx = context.Background()
}

func (s *StorageSuite) newSession(id model.SessionID, creator model.PlayerID) *model.Session {
	return model.NewSession(id, creator, model.Options{AllowSpectators: true}, s.clock.Now())
}

// Snapshot tests

func (s *StorageSuite) TestSaveAndLoadSnapshot() {
	session := s.newSession("session-1", "alice")

	err := s.storage.SaveSnapshot(s.ctx, session)
	s.Require().NoError(err)

	loaded, err := s.storage.LoadSnapshot(s.ctx, "session-1")
	s.Require().NoError(err)
	s.Equal(session, loaded)
}

func (s *StorageSuite) TestLoadSnapshotNotFound() {
	_, err := s.storage.LoadSnapshot(s.ctx, "missing")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StorageSuite) TestSnapshotIsCopied() {
	session := s.newSession("session-1", "alice")
	s.Require().NoError(s.storage.SaveSnapshot(s.ctx, session))

	session.PlayerB = "bob"

	loaded, err := s.storage.LoadSnapshot(s.ctx, "session-1")
	s.Require().NoError(err)
	s.Empty(loaded.PlayerB)
}

func (s *StorageSuite) TestListPlayerSessions() {
	first := s.newSession("session-1", "alice")
	s.clock.Advance(time.Minute)
	second := s.newSession("session-2", "bob")
	second.PlayerB = "alice"
	s.clock.Advance(time.Minute)
	other := s.newSession("session-3", "carol")

	for _, sess := range []*model.Session{first, second, other} {
		s.Require().NoError(s.storage.SaveSnapshot(s.ctx, sess))
	}

	sessions, err := s.storage.ListPlayerSessions(s.ctx, "alice", 10)
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal(model.SessionID("session-2"), sessions[0].ID)
	s.Equal(model.SessionID("session-1"), sessions[1].ID)

	limited, err := s.storage.ListPlayerSessions(s.ctx, "alice", 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}

// Move tests

func (s *StorageSuite) TestAppendMoveIgnoresDuplicates() {
	move := model.Move{PlayerID: "alice", Cell: 4, Mark: model.MarkX, Seq: 1}
	s.Require().NoError(s.storage.AppendMove(s.ctx, "session-1", move))
	s.Require().NoError(s.storage.AppendMove(s.ctx, "session-1", move))

	s.Equal([]model.Move{move}, s.storage.Moves("session-1"))
}

// Stats tests

func (s *StorageSuite) TestPlayerStatsAccumulate() {
	s.Require().NoError(s.storage.UpdatePlayerStats(s.ctx, "alice", model.StatsDelta{GamesPlayed: 1, GamesWon: 1}))
	s.Require().NoError(s.storage.UpdatePlayerStats(s.ctx, "alice", model.StatsDelta{GamesPlayed: 1, GamesLost: 1}))

	stats, err := s.storage.GetPlayerStats(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerStats{PlayerID: "alice", GamesPlayed: 2, GamesWon: 1, GamesLost: 1}, stats)
}

func (s *StorageSuite) TestPlayerStatsDefaultToZero() {
	stats, err := s.storage.GetPlayerStats(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Equal(model.PlayerStats{PlayerID: "nobody"}, stats)
}

// Cache tests

func (s *StorageSuite) TestCachePutAndGet() {
	s.Require().NoError(s.storage.Put(s.ctx, "session-1", []byte(`{"id":"session-1"}`), 0))

	data, err := s.storage.Get(s.ctx, "session-1")
	s.Require().NoError(err)
	s.JSONEq(`{"id":"session-1"}`, string(data))
}

func (s *StorageSuite) TestCacheMiss() {
	_, err := s.storage.Get(s.ctx, "missing")
	s.ErrorIs(err, storage.ErrCacheMiss)
}

func (s *StorageSuite) TestCacheEntryExpires() {
	s.Require().NoError(s.storage.Put(s.ctx, "session-1", []byte("data"), time.Minute))

	s.clock.Advance(59 * time.Second)
	_, err := s.storage.Get(s.ctx, "session-1")
	s.Require().NoError(err)

	s.clock.Advance(time.Second)
	_, err = s.storage.Get(s.ctx, "session-1")
	s.ErrorIs(err, storage.ErrCacheMiss)
}

func (s *StorageSuite) TestCacheDelete() {
	s.Require().NoError(s.storage.Put(s.ctx, "session-1", []byte("data"), 0))
	s.Require().NoError(s.storage.Delete(s.ctx, "session-1"))

	_, err := s.storage.Get(s.ctx, "session-1")
	s.ErrorIs(err, storage.ErrCacheMiss)
}
