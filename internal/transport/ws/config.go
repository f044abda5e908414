package ws

import (
	"errors"
	"time"
)

// Config holds the WebSocket transport settings
type Config struct {
	MaxConnections   int
	MaxMessageSize   int64
	RateLimit        int
	RateWindow       time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	SendBuffer       int
	ReconnectGrace   time.Duration
	ShutdownTimeout  time.Duration

	// AllowedOrigins restricts the Origin header on upgrade. Empty allows any origin.
	AllowedOrigins []string
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		MaxConnections:   10000,
		MaxMessageSize:   10 * 1024,
		RateLimit:        100,
		RateWindow:       time.Minute,
		PingInterval:     30 * time.Second,
		PongTimeout:      5 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		SendBuffer:       256,
		ReconnectGrace:   5 * time.Minute,
		ShutdownTimeout:  5 * time.Second,
	}
}

// Validate checks the configuration for values the transport cannot run with
func (c Config) Validate() error {
	if c.MaxConnections <= 0 {
		return errors.New("max connections must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("max message size must be positive")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return errors.New("rate limit and window must be positive")
	}
	if c.PingInterval <= 0 || c.PongTimeout <= 0 {
		return errors.New("ping interval and pong timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	if c.SendBuffer <= 0 {
		return errors.New("send buffer must be positive")
	}
	if c.ReconnectGrace < 0 {
		return errors.New("reconnect grace must not be negative")
	}
	return nil
}

// readLimit is the largest frame accepted before the socket is dropped.
// Frames between MaxMessageSize and this limit are answered with an error.
func (c Config) readLimit() int64 {
	return c.MaxMessageSize * 4
}

// readTimeout is how long a connection may stay silent, pongs included
func (c Config) readTimeout() time.Duration {
	return c.PingInterval + c.PongTimeout
}
