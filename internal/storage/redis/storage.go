package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

// Storage is a Redis-backed implementation of both the Store and Cache interfaces
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Ping checks the connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interfaces
var (
	_ storage.Store = (*Storage)(nil)
	_ storage.Cache = (*Storage)(nil)
)

// Session operations

func (s *Storage) SaveSnapshot(ctx context.Context, session *model.Session) error {
	data, err := storage.EncodeSession(session)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(session.ID), data, s.cfg.SnapshotTTL)
	for _, player := range []model.PlayerID{session.PlayerA, session.PlayerB} {
		if player != "" {
			pipe.SAdd(ctx, s.playerSessionsIndexKey(player), string(session.ID))
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) LoadSnapshot(ctx context.Context, id model.SessionID) (*model.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}
	return storage.DecodeSession(data)
}

func (s *Storage) ListPlayerSessions(ctx context.Context, player model.PlayerID, limit int) ([]*model.Session, error) {
	indexKey := s.playerSessionsIndexKey(player)

	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(model.SessionID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Snapshot may have expired
		}
		session, err := storage.DecodeSession([]byte(str))
		if err != nil {
			continue // Skip invalid data
		}
		sessions = append(sessions, session)
	}

	return storage.SortByCreatedDesc(sessions, limit), nil
}

// Move operations

func (s *Storage) AppendMove(ctx context.Context, id model.SessionID, move model.Move) error {
	data, err := json.Marshal(move)
	if err != nil {
		return err
	}

	key := s.movesKey(id)

	// A retried write must not duplicate the move
	length, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return err
	}
	if length >= int64(move.Seq) {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.cfg.MoveLogTTL > 0 {
		pipe.Expire(ctx, key, s.cfg.MoveLogTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Moves returns the recorded move log for a session
func (s *Storage) Moves(ctx context.Context, id model.SessionID) ([]model.Move, error) {
	values, err := s.client.LRange(ctx, s.movesKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	moves := make([]model.Move, 0, len(values))
	for _, val := range values {
		var move model.Move
		if err := json.Unmarshal([]byte(val), &move); err != nil {
			return nil, fmt.Errorf("decode move: %w", err)
		}
		moves = append(moves, move)
	}
	return moves, nil
}

// Player statistics operations

func (s *Storage) UpdatePlayerStats(ctx context.Context, player model.PlayerID, delta model.StatsDelta) error {
	key := s.statsKey(player)

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, fieldGamesPlayed, int64(delta.GamesPlayed))
	pipe.HIncrBy(ctx, key, fieldGamesWon, int64(delta.GamesWon))
	pipe.HIncrBy(ctx, key, fieldGamesLost, int64(delta.GamesLost))
	pipe.HIncrBy(ctx, key, fieldGamesDrawn, int64(delta.GamesDrawn))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) GetPlayerStats(ctx context.Context, player model.PlayerID) (model.PlayerStats, error) {
	stats := model.PlayerStats{PlayerID: player}

	fields, err := s.client.HGetAll(ctx, s.statsKey(player)).Result()
	if err != nil {
		return stats, err
	}

	for field, target := range map[string]*int{
		fieldGamesPlayed: &stats.GamesPlayed,
		fieldGamesWon:    &stats.GamesWon,
		fieldGamesLost:   &stats.GamesLost,
		fieldGamesDrawn:  &stats.GamesDrawn,
	} {
		raw, ok := fields[field]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return stats, fmt.Errorf("parse %s for %s: %w", field, player, err)
		}
		*target = n
	}
	return stats, nil
}

// Cache operations

func (s *Storage) Put(ctx context.Context, id model.SessionID, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.cacheKey(id), data, ttl).Err()
}

func (s *Storage) Get(ctx context.Context, id model.SessionID) ([]byte, error) {
	data, err := s.client.Get(ctx, s.cacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrCacheMiss
		}
		return nil, err
	}
	return data, nil
}

func (s *Storage) Delete(ctx context.Context, id model.SessionID) error {
	return s.client.Del(ctx, s.cacheKey(id)).Err()
}
