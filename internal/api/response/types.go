package response

import (
	"time"

	"github.com/mcoot/tictactoe-go/internal/protocol"
)

// Health status values
const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
)

// HealthResponse is returned by the liveness endpoints
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
	UptimeSec int64     `json:"uptimeSeconds,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse reports each dependency checked by the readiness check
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatusResponse summarizes live sessions and connections
type StatusResponse struct {
	Status    string         `json:"status"`
	UptimeSec int64          `json:"uptimeSeconds"`
	Stats     protocol.Stats `json:"stats"`
	Timestamp time.Time      `json:"timestamp"`
}
