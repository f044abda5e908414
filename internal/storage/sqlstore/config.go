package sqlstore

import (
	"fmt"
	"strings"
	"time"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// sqliteOptions enable WAL, a busy timeout, and foreign keys on every connection
const sqliteOptions = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

// Config holds SQL connection settings
type Config struct {
	// Driver is either "sqlite3" or "postgres"
	Driver string

	// DSN is a file path for sqlite3 or a connection string for postgres
	DSN string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns a file-backed SQLite configuration
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "tictactoe.db",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Validate checks the driver and DSN
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported sql driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("sql dsn must not be empty")
	}
	return nil
}

// dataSourceName returns the DSN passed to sql.Open
func (c Config) dataSourceName() string {
	if c.Driver != DriverSQLite || strings.Contains(c.DSN, "?") {
		return c.DSN
	}
	return c.DSN + "?" + sqliteOptions
}
