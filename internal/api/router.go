package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tictactoe-go/internal/api/apierr"
	"github.com/mcoot/tictactoe-go/internal/api/handler"
	"github.com/mcoot/tictactoe-go/internal/api/response"
	"github.com/mcoot/tictactoe-go/internal/middleware"
)

// RouterConfig holds configuration for the HTTP router
type RouterConfig struct {
	Logger    *slog.Logger
	Transport http.Handler
	Health    *handler.HealthHandler
}

// NewRouter creates the router for the websocket endpoint and the operational routes
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	r.Handle("/ws", cfg.Transport).Methods(http.MethodGet)

	health := r.PathPrefix("/health").Subrouter()
	health.HandleFunc("", cfg.Health.Health).Methods(http.MethodGet)
	health.HandleFunc("/live", cfg.Health.Live).Methods(http.MethodGet)
	health.HandleFunc("/ready", cfg.Health.Ready).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", cfg.Health.Status).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

func writeStatus(w http.ResponseWriter, status int, code, message string) {
	response.JSON(w, status, apierr.ErrorResponse{Error: apierr.APIError{Code: code, Message: message}})
}
