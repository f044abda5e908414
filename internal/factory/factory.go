package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/tictactoe-go/internal/api"
	"github.com/mcoot/tictactoe-go/internal/api/handler"
	"github.com/mcoot/tictactoe-go/internal/config"
	"github.com/mcoot/tictactoe-go/internal/connection"
	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-go/internal/dependencies/random"
	"github.com/mcoot/tictactoe-go/internal/protocol"
	"github.com/mcoot/tictactoe-go/internal/services/session"
	"github.com/mcoot/tictactoe-go/internal/storage"
	"github.com/mcoot/tictactoe-go/internal/storage/memory"
	redisstorage "github.com/mcoot/tictactoe-go/internal/storage/redis"
	"github.com/mcoot/tictactoe-go/internal/storage/sqlstore"
	"github.com/mcoot/tictactoe-go/internal/transport/ws"
)

// Version is reported by the health endpoint and the welcome message
const Version = ws.Version

// App contains all wired application components
type App struct {
	Config *config.Config

	// Storage
	Store storage.Store
	Cache storage.Cache

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	Logger *slog.Logger

	// Services
	Sessions   *session.Store
	Registry   *connection.Registry
	Dispatcher *protocol.Dispatcher
	Transport  *ws.Manager
	Health     *handler.HealthHandler

	// Handler serves the websocket endpoint and the operational routes
	Handler http.Handler
}

// New creates a new application with all dependencies wired.
// A nil logger discards output.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clk := clock.New()
	store, cache, err := openStorage(ctx, cfg, clk)
	if err != nil {
		return nil, err
	}

	return newWithDependencies(cfg, store, cache, clk, random.New(), protocol.TrustedIdentity{}, logger), nil
}

// openStorage builds the store and cache selected by the config. The redis
// store doubles as the redis cache.
func openStorage(ctx context.Context, cfg *config.Config, clk clock.Clock) (storage.Store, storage.Cache, error) {
	var (
		store      storage.Store
		redisStore *redisstorage.Storage
	)

	openRedis := func() (*redisstorage.Storage, error) {
		if redisStore != nil {
			return redisStore, nil
		}
		s, err := redisstorage.New(cfg.Storage.Redis)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		redisStore = s
		return s, nil
	}

	switch cfg.Storage.Type {
	case config.StorageMemory:
		store = memory.NewWithClock(clk)
	case config.StorageSQLite, config.StoragePostgres:
		s, err := sqlstore.NewWithClock(ctx, cfg.Storage.SQL, clk)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.Storage.Type, err)
		}
		store = s
	case config.StorageRedis:
		s, err := openRedis()
		if err != nil {
			return nil, nil, err
		}
		store = s
	default:
		return nil, nil, fmt.Errorf("invalid storage type %q", cfg.Storage.Type)
	}

	var cache storage.Cache
	switch cfg.Cache.Type {
	case config.CacheMemory:
		if m, ok := store.(*memory.Storage); ok {
			cache = m
		} else {
			cache = memory.NewWithClock(clk)
		}
	case config.CacheRedis:
		s, err := openRedis()
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		cache = s
	case config.CacheNone:
		cache = storage.NopCache{}
	default:
		_ = store.Close()
		return nil, nil, fmt.Errorf("invalid cache type %q", cfg.Cache.Type)
	}

	return store, cache, nil
}

// newWithDependencies wires the application around the given dependencies
func newWithDependencies(
	cfg *config.Config,
	store storage.Store,
	cache storage.Cache,
	clk clock.Clock,
	rnd random.Random,
	verifier protocol.IdentityVerifier,
	logger *slog.Logger,
) *App {
	sessions := session.New(cfg.Session, store, cache, clk, rnd, logger)
	registry := connection.NewRegistry(clk, logger)
	dispatcher := protocol.NewDispatcher(sessions, registry, verifier, clk, logger)
	transport := ws.NewManager(cfg.Transport, registry, dispatcher, sessions, clk, rnd, logger)
	dispatcher.SetAuthListener(transport)

	checks := map[string]handler.Pinger{"store": store}
	if _, none := cache.(storage.NopCache); !none && any(cache) != any(store) {
		checks["cache"] = cache
	}
	health := handler.NewHealthHandler(checks, dispatcher, clk, Version, logger)

	router := api.NewRouter(api.RouterConfig{
		Logger:    logger,
		Transport: transport,
		Health:    health,
	})

	return &App{
		Config:     cfg,
		Store:      store,
		Cache:      cache,
		Clock:      clk,
		Random:     rnd,
		Logger:     logger,
		Sessions:   sessions,
		Registry:   registry,
		Dispatcher: dispatcher,
		Transport:  transport,
		Health:     health,
		Handler:    router,
	}
}

// Shutdown closes connections first, then drains session writes and closes storage
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Transport.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("transport: %w", err))
	}
	if err := a.Sessions.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if any(a.Cache) != any(a.Store) {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	return errors.Join(errs...)
}
