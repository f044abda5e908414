package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

// Storage is a database/sql implementation of the Store interface for SQLite and PostgreSQL
type Storage struct {
	db      *sql.DB
	dialect dialect
	clock   clock.Clock
}

// New opens the database, configures the pool, and applies pending migrations
func New(ctx context.Context, cfg Config) (*Storage, error) {
	return NewWithClock(ctx, cfg, clock.New())
}

// NewWithClock is New with an injected clock for migration timestamps
func NewWithClock(ctx context.Context, cfg Config, clk clock.Clock) (*Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.dataSourceName())
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	s := &Storage{
		db:      db,
		dialect: dialectFor(cfg.Driver),
		clock:   clk,
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Driver, err)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

func (s *Storage) now() time.Time {
	return s.clock.Now()
}

// Ping checks the connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *Storage) Close() error {
	return s.db.Close()
}

// Session operations

func (s *Storage) SaveSnapshot(ctx context.Context, session *model.Session) error {
	data, err := storage.EncodeSession(session)
	if err != nil {
		return err
	}

	query := s.dialect.rebind(`
		INSERT INTO game_sessions (id, player_a, player_b, status, winner, snapshot, created_at, last_move_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			player_b = excluded.player_b,
			status = excluded.status,
			winner = excluded.winner,
			snapshot = excluded.snapshot,
			last_move_at = excluded.last_move_at,
			completed_at = excluded.completed_at`)

	_, err = s.db.ExecContext(ctx, query,
		string(session.ID),
		string(session.PlayerA),
		string(session.PlayerB),
		string(session.Status),
		string(session.Outcome.Winner),
		string(data),
		session.CreatedAt.UnixNano(),
		nullableTime(&session.LastMoveAt),
		nullableTime(session.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", session.ID, err)
	}
	return nil
}

func (s *Storage) LoadSnapshot(ctx context.Context, id model.SessionID) (*model.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT snapshot FROM game_sessions WHERE id = ?`),
		string(id),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return storage.DecodeSession([]byte(data))
}

func (s *Storage) ListPlayerSessions(ctx context.Context, player model.PlayerID, limit int) ([]*model.Session, error) {
	query := `SELECT snapshot FROM game_sessions WHERE player_a = ? OR player_b = ? ORDER BY created_at DESC, id ASC`
	args := []any{string(player), string(player)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", player, err)
	}
	defer func() { _ = rows.Close() }()

	sessions := []*model.Session{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		session, err := storage.DecodeSession([]byte(data))
		if err != nil {
			continue // Skip invalid data
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Move operations

// AppendMove records a move. Re-appending the same sequence number is a no-op.
func (s *Storage) AppendMove(ctx context.Context, id model.SessionID, move model.Move) error {
	query := s.dialect.rebind(`
		INSERT INTO game_moves (session_id, seq, player_id, cell, mark, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, seq) DO NOTHING`)

	_, err := s.db.ExecContext(ctx, query,
		string(id),
		move.Seq,
		string(move.PlayerID),
		move.Cell,
		string(move.Mark),
		move.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append move %d to %s: %w", move.Seq, id, err)
	}
	return nil
}

// Moves returns the recorded move log for a session in sequence order
func (s *Storage) Moves(ctx context.Context, id model.SessionID) ([]model.Move, error) {
	rows, err := s.db.QueryContext(ctx,
		s.dialect.rebind(`SELECT seq, player_id, cell, mark, created_at FROM game_moves WHERE session_id = ? ORDER BY seq`),
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("query moves for %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	moves := []model.Move{}
	for rows.Next() {
		var (
			move     model.Move
			playerID string
			mark     string
			ts       int64
		)
		if err := rows.Scan(&move.Seq, &playerID, &move.Cell, &mark, &ts); err != nil {
			return nil, err
		}
		move.PlayerID = model.PlayerID(playerID)
		move.Mark = model.Mark(mark)
		move.Timestamp = time.Unix(0, ts).UTC()
		moves = append(moves, move)
	}
	return moves, rows.Err()
}

// Player statistics operations

func (s *Storage) UpdatePlayerStats(ctx context.Context, player model.PlayerID, delta model.StatsDelta) error {
	query := s.dialect.rebind(`
		INSERT INTO player_stats (player_id, games_played, games_won, games_lost, games_drawn)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (player_id) DO UPDATE SET
			games_played = player_stats.games_played + excluded.games_played,
			games_won = player_stats.games_won + excluded.games_won,
			games_lost = player_stats.games_lost + excluded.games_lost,
			games_drawn = player_stats.games_drawn + excluded.games_drawn`)

	_, err := s.db.ExecContext(ctx, query,
		string(player),
		delta.GamesPlayed,
		delta.GamesWon,
		delta.GamesLost,
		delta.GamesDrawn,
	)
	if err != nil {
		return fmt.Errorf("update stats for %s: %w", player, err)
	}
	return nil
}

func (s *Storage) GetPlayerStats(ctx context.Context, player model.PlayerID) (model.PlayerStats, error) {
	stats := model.PlayerStats{PlayerID: player}
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT games_played, games_won, games_lost, games_drawn FROM player_stats WHERE player_id = ?`),
		string(player),
	).Scan(&stats.GamesPlayed, &stats.GamesWon, &stats.GamesLost, &stats.GamesDrawn)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, fmt.Errorf("get stats for %s: %w", player, err)
	}
	return stats, nil
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
