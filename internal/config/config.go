package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mcoot/tictactoe-go/internal/api"
	"github.com/mcoot/tictactoe-go/internal/services/session"
	"github.com/mcoot/tictactoe-go/internal/storage/redis"
	"github.com/mcoot/tictactoe-go/internal/storage/sqlstore"
	"github.com/mcoot/tictactoe-go/internal/transport/ws"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config is the complete server configuration
type Config struct {
	Server    api.ServerConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Session   session.Config
	Transport ws.Config
	Log       LogConfig
}

// StorageConfig selects and configures the durable store
type StorageConfig struct {
	Type  string
	SQL   sqlstore.Config
	Redis redis.Config
}

// CacheConfig selects the session cache. The redis cache shares the storage redis settings.
type CacheConfig struct {
	Type string
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string
	Format string
}

// DefaultConfig returns a configuration that runs entirely in memory
func DefaultConfig() *Config {
	return &Config{
		Server: api.DefaultServerConfig(),
		Storage: StorageConfig{
			Type:  StorageMemory,
			SQL:   sqlstore.DefaultConfig(),
			Redis: redis.DefaultConfig(),
		},
		Cache:     CacheConfig{Type: CacheMemory},
		Session:   session.DefaultConfig(),
		Transport: ws.DefaultConfig(),
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads an optional dotenv file into the environment and then loads the configuration
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	cfg, err := LoadFromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv overrides the defaults with TTT_* variables read through lookup
func LoadFromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	e := &envReader{lookup: lookup}

	e.setString("TTT_HOST", &cfg.Server.Host)
	e.setInt("TTT_PORT", &cfg.Server.Port)
	e.setDuration("TTT_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	e.setString("TTT_STORAGE_TYPE", &cfg.Storage.Type)
	e.setString("TTT_DATABASE_DSN", &cfg.Storage.SQL.DSN)
	e.setInt("TTT_DATABASE_MAX_OPEN_CONNS", &cfg.Storage.SQL.MaxOpenConns)
	e.setString("TTT_REDIS_URL", &cfg.Storage.Redis.URL)
	e.setString("TTT_REDIS_KEY_PREFIX", &cfg.Storage.Redis.KeyPrefix)
	e.setString("TTT_CACHE_TYPE", &cfg.Cache.Type)

	e.setDuration("TTT_WAIT_TIMEOUT", &cfg.Session.WaitTimeout)
	e.setDuration("TTT_MOVE_TIMEOUT", &cfg.Session.MoveTimeout)
	e.setDuration("TTT_SESSION_RETENTION", &cfg.Session.Retention)
	e.setDuration("TTT_SWEEP_INTERVAL", &cfg.Session.SweepInterval)
	e.setDuration("TTT_CACHE_TTL", &cfg.Session.CacheTTL)
	e.setInt("TTT_MAX_SPECTATORS", &cfg.Session.MaxSpectators)

	e.setInt("TTT_MAX_CONNECTIONS", &cfg.Transport.MaxConnections)
	e.setInt64("TTT_MAX_MESSAGE_SIZE", &cfg.Transport.MaxMessageSize)
	e.setInt("TTT_RATE_LIMIT", &cfg.Transport.RateLimit)
	e.setDuration("TTT_PING_INTERVAL", &cfg.Transport.PingInterval)
	e.setDuration("TTT_PONG_TIMEOUT", &cfg.Transport.PongTimeout)
	e.setDuration("TTT_RECONNECT_GRACE", &cfg.Transport.ReconnectGrace)
	e.setList("TTT_ALLOWED_ORIGINS", &cfg.Transport.AllowedOrigins)

	e.setString("TTT_LOG_LEVEL", &cfg.Log.Level)
	e.setString("TTT_LOG_FORMAT", &cfg.Log.Format)

	switch cfg.Storage.Type {
	case StorageSQLite:
		cfg.Storage.SQL.Driver = sqlstore.DriverSQLite
	case StoragePostgres:
		cfg.Storage.SQL.Driver = sqlstore.DriverPostgres
	}

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot start with
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Server.Port)
	}

	switch c.Storage.Type {
	case StorageMemory, StorageRedis:
	case StorageSQLite, StoragePostgres:
		if err := c.Storage.SQL.Validate(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	default:
		return fmt.Errorf("invalid storage type %q: must be memory, sqlite, postgres or redis", c.Storage.Type)
	}

	switch c.Cache.Type {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("invalid cache type %q: must be memory, redis or none", c.Cache.Type)
	}
	if (c.Storage.Type == StorageRedis || c.Cache.Type == CacheRedis) && c.Storage.Redis.URL == "" {
		return errors.New("redis url is required when redis storage or cache is selected")
	}

	if c.Session.WaitTimeout <= 0 || c.Session.MoveTimeout <= 0 {
		return errors.New("session timeouts must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if c.Session.MaxSpectators < 0 {
		return errors.New("max spectators must not be negative")
	}

	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format %q: must be json or text", c.Log.Format)
	}
	return nil
}

// NewLogger builds the process logger
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// envReader applies environment overrides, collecting parse errors
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (e *envReader) setInt(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (e *envReader) setInt64(key string, dst *int64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return
	}
	*dst = d
}
