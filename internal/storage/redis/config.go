package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// KeyPrefix namespaces every key written by this service
	KeyPrefix string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// TTL settings. Zero disables expiry.
	SnapshotTTL time.Duration
	MoveLogTTL  time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		KeyPrefix:    "ttt",
		PoolSize:     10,
		MinIdleConns: 2,
		SnapshotTTL:  7 * 24 * time.Hour,
		MoveLogTTL:   7 * 24 * time.Hour,
	}
}
