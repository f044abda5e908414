package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Player    string
	Token     string
	Output    string
	Verbose   bool
	Timeout   time.Duration
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("TTTGAME_SERVER", "ws://localhost:8080/ws"),
		Player:    os.Getenv("TTTGAME_PLAYER"),
		Token:     os.Getenv("TTTGAME_TOKEN"),
		Output:    "text",
		Verbose:   false,
		Timeout:   10 * time.Second,
	}
}

// RequirePlayer returns an error if no player id is configured
func (c *Config) RequirePlayer() error {
	if c.Player == "" {
		return fmt.Errorf("player id required (--player or TTTGAME_PLAYER)")
	}
	return nil
}

// HTTPBaseURL derives the HTTP base URL from the websocket endpoint
func (c *Config) HTTPBaseURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/ws")
	u.RawQuery = ""
	return u.String(), nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
