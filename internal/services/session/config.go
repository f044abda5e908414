package session

import "time"

// Config holds session lifecycle settings
type Config struct {
	// WaitTimeout abandons a session still waiting for an opponent
	WaitTimeout time.Duration
	// MoveTimeout is the default per-move limit when a session does not set one
	MoveTimeout time.Duration
	// Retention is how long a finished session stays in memory
	Retention time.Duration
	// SweepInterval is how often Run evicts finished sessions
	SweepInterval time.Duration
	// MaxSpectators caps spectators per session
	MaxSpectators int
	// CacheTTL is the expiry applied to cached session copies
	CacheTTL time.Duration

	// Write-behind settings. A write that finds the queue full is dropped.
	PersistQueueSize  int
	PersistRetryDelay time.Duration
	PersistTimeout    time.Duration
}

// DefaultConfig returns the default session settings
func DefaultConfig() Config {
	return Config{
		WaitTimeout:       30 * time.Minute,
		MoveTimeout:       2 * time.Minute,
		Retention:         5 * time.Minute,
		SweepInterval:     5 * time.Minute,
		MaxSpectators:     10,
		CacheTTL:          time.Hour,
		PersistQueueSize:  1024,
		PersistRetryDelay: time.Second,
		PersistTimeout:    5 * time.Second,
	}
}
