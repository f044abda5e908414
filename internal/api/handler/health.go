package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/tictactoe-go/internal/api/response"
	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-go/internal/protocol"
)

// checkTimeout bounds each dependency ping in the readiness check
const checkTimeout = 2 * time.Second

// Pinger is a dependency the readiness check can check
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsSource supplies the live service statistics
type StatsSource interface {
	Stats() protocol.Stats
}

// HealthHandler serves the health and status endpoints
type HealthHandler struct {
	checks    map[string]Pinger
	stats     StatsSource
	clock     clock.Clock
	logger    *slog.Logger
	version   string
	startedAt time.Time
}

// NewHealthHandler creates a health handler. Nil entries in checks are skipped.
func NewHealthHandler(checks map[string]Pinger, stats StatsSource, clock clock.Clock, version string, logger *slog.Logger) *HealthHandler {
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{
		checks:    active,
		stats:     stats,
		clock:     clock,
		logger:    logger.With(slog.String("component", "health")),
		version:   version,
		startedAt: clock.Now(),
	}
}

func (h *HealthHandler) uptime() int64 {
	return int64(h.clock.Now().Sub(h.startedAt).Seconds())
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.HealthResponse{
		Status:    response.StatusOK,
		Version:   h.version,
		UptimeSec: h.uptime(),
		Timestamp: h.clock.Now(),
	})
}

// Live handles GET /health/live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.HealthResponse{
		Status:    response.StatusOK,
		Timestamp: h.clock.Now(),
	})
}

// Ready handles GET /health/ready. Any failing dependency makes the service unready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := response.ReadyResponse{
		Status: response.StatusOK,
		Checks: make(map[string]string, len(h.checks)),
	}
	for name, p := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("readiness check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			resp.Checks[name] = "error: " + err.Error()
			resp.Status = response.StatusUnavailable
			continue
		}
		resp.Checks[name] = response.StatusOK
	}

	status := http.StatusOK
	if resp.Status != response.StatusOK {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, resp)
}

// Status handles GET /api/v1/status
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.StatusResponse{
		Status:    response.StatusOK,
		UptimeSec: h.uptime(),
		Stats:     h.stats.Stats(),
		Timestamp: h.clock.Now(),
	})
}
