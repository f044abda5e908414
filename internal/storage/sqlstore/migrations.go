package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one versioned schema change
type migration struct {
	Version     int
	Description string
	Statements  []string
}

// Timestamps are stored as Unix nanoseconds so both dialects order them identically.
var migrations = []migration{
	{
		Version:     1,
		Description: "create game sessions",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS game_sessions (
				id TEXT PRIMARY KEY,
				player_a TEXT NOT NULL,
				player_b TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				winner TEXT NOT NULL DEFAULT '',
				snapshot TEXT NOT NULL,
				created_at BIGINT NOT NULL,
				last_move_at BIGINT,
				completed_at BIGINT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_game_sessions_player_a ON game_sessions (player_a, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_game_sessions_player_b ON game_sessions (player_b, created_at)`,
		},
	},
	{
		Version:     2,
		Description: "create game moves",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS game_moves (
				session_id TEXT NOT NULL,
				seq INTEGER NOT NULL,
				player_id TEXT NOT NULL,
				cell INTEGER NOT NULL,
				mark TEXT NOT NULL,
				created_at BIGINT NOT NULL,
				PRIMARY KEY (session_id, seq)
			)`,
		},
	},
	{
		Version:     3,
		Description: "create player stats",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS player_stats (
				player_id TEXT PRIMARY KEY,
				games_played INTEGER NOT NULL DEFAULT 0,
				games_won INTEGER NOT NULL DEFAULT 0,
				games_lost INTEGER NOT NULL DEFAULT 0,
				games_drawn INTEGER NOT NULL DEFAULT 0
			)`,
		},
	},
}

// migrate applies every migration not yet recorded in schema_migrations.
// Each migration runs in its own transaction.
func (s *Storage) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at BIGINT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func (s *Storage) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Storage) applyMigration(ctx context.Context, m migration) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range m.Statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		s.dialect.rebind(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`),
		m.Version, m.Description, s.now().UnixNano())
	if err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration version
func (s *Storage) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}
