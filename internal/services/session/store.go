package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-go/internal/dependencies/random"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/services/validator"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

// Notifier is told about transitions that no caller initiated
type Notifier interface {
	// SessionAbandoned is called after a timer abandons a session
	SessionAbandoned(ctx context.Context, s *model.Session)
}

// MoveResult is the outcome of an accepted move
type MoveResult struct {
	Session    *model.Session
	Move       model.Move
	Evaluation validator.Evaluation
}

// entry holds one live session. mu serializes every mutation of the session.
type entry struct {
	mu       sync.Mutex
	session  *model.Session
	timer    clock.Timer
	timerGen uint64
	evicted  bool
}

// Store owns the live sessions and their lifecycle.
// Lock order is Store.mu, then entry.mu.
type Store struct {
	cfg    Config
	store  storage.Store
	cache  storage.Cache
	clock  clock.Clock
	random random.Random
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[model.SessionID]*entry

	notifierMu sync.RWMutex
	notifier   Notifier

	persist *persister

	gamesCreated   atomic.Int64
	gamesCompleted atomic.Int64
	gamesAbandoned atomic.Int64
	totalMoves     atomic.Int64
}

// New creates a session store backed by the given persistent store and cache
func New(
	cfg Config,
	store storage.Store,
	cache storage.Cache,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Store {
	logger = logger.With(slog.String("component", "session_store"))
	return &Store{
		cfg:      cfg,
		store:    store,
		cache:    cache,
		clock:    clock,
		random:   random,
		logger:   logger,
		sessions: make(map[model.SessionID]*entry),
		persist:  newPersister(cfg.PersistQueueSize, cfg.PersistRetryDelay, cfg.PersistTimeout, logger),
	}
}

// SetNotifier registers the receiver of timer-driven transitions
func (s *Store) SetNotifier(n Notifier) {
	s.notifierMu.Lock()
	defer s.notifierMu.Unlock()
	s.notifier = n
}

// Create starts a waiting session with creator in slot A
func (s *Store) Create(ctx context.Context, creator model.PlayerID, opts model.Options) (*model.Session, error) {
	if creator == "" {
		return nil, model.ErrInvalidPlayer
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = s.cfg.WaitTimeout
	}
	if opts.MoveTimeout <= 0 {
		opts.MoveTimeout = s.cfg.MoveTimeout
	}

	id := model.SessionID(s.random.ID())
	session := model.NewSession(id, creator, opts, s.clock.Now())
	e := &entry{session: session}

	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("session id %s already in use", id)
	}
	e.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()

	s.armTimer(e, opts.WaitTimeout)
	s.persistSnapshot(session)
	s.gamesCreated.Add(1)
	snapshot := session.Clone()
	e.mu.Unlock()

	s.logger.Info("session created",
		slog.String("session_id", string(id)),
		slog.String("player_id", string(creator)),
		slog.Duration("move_timeout", opts.MoveTimeout),
		slog.Bool("allow_spectators", opts.AllowSpectators),
	)

	return snapshot, nil
}

// Join places player in slot B and starts the game
func (s *Store) Join(ctx context.Context, id model.SessionID, player model.PlayerID) (*model.Session, error) {
	if player == "" {
		return nil, model.ErrInvalidPlayer
	}

	var snapshot *model.Session
	err := s.withEntry(ctx, id, func(e *entry) error {
		session := e.session
		if session.PlayerB != "" {
			return model.ErrSessionFull
		}
		if session.PlayerA == player {
			return model.ErrSelfJoin
		}
		if session.Status != model.StatusWaiting {
			return model.ErrNotJoinable
		}

		session.PlayerB = player
		session.Status = model.StatusActive
		session.LastMoveAt = s.clock.Now()
		s.removeSpectatorLocked(session, player)

		s.armTimer(e, session.Options.MoveTimeout)
		s.persistSnapshot(session)
		snapshot = session.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("player joined session",
		slog.String("session_id", string(id)),
		slog.String("player_id", string(player)),
	)

	return snapshot, nil
}

// ApplyMove validates and applies a move. A rejected move leaves the session untouched.
func (s *Store) ApplyMove(ctx context.Context, id model.SessionID, player model.PlayerID, cell int) (*MoveResult, error) {
	var result *MoveResult
	err := s.withEntry(ctx, id, func(e *entry) error {
		session := e.session
		if err := validator.ValidateMove(session, player, cell); err != nil {
			return err
		}

		now := s.clock.Now()
		mark := session.Turn
		move := model.Move{
			PlayerID:  player,
			Cell:      cell,
			Mark:      mark,
			Timestamp: now,
			Seq:       len(session.Moves) + 1,
		}
		session.Board[cell] = mark
		session.Moves = append(session.Moves, move)
		session.LastMoveAt = now
		session.Turn = mark.Opponent()
		s.totalMoves.Add(1)

		eval := validator.EvaluateBoard(session.Board)
		if eval.Decided() {
			session.Status = model.StatusCompleted
			if eval.State == validator.StateWin {
				session.Outcome.Winner = session.PlayerFor(eval.Mark)
				session.WinningLine = eval.Line
			} else {
				session.Outcome.Draw = true
			}
			session.CompletedAt = &now
			s.stopTimer(e)
			s.gamesCompleted.Add(1)
		} else {
			s.armTimer(e, session.Options.MoveTimeout)
		}

		s.persistMove(session.ID, move)
		s.persistSnapshot(session)
		if eval.Decided() {
			s.persistStats(session)
		}

		result = &MoveResult{Session: session.Clone(), Move: move, Evaluation: eval}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Evaluation.Decided() {
		s.logger.Info("session completed",
			slog.String("session_id", string(id)),
			slog.String("winner", string(result.Session.Outcome.Winner)),
			slog.Bool("draw", result.Session.Outcome.Draw),
			slog.Int("moves", len(result.Session.Moves)),
		)
	}

	return result, nil
}

// AddSpectator adds a spectator. Adding a present spectator or a player is a no-op.
func (s *Store) AddSpectator(ctx context.Context, id model.SessionID, spectator model.PlayerID) (*model.Session, error) {
	if spectator == "" {
		return nil, model.ErrInvalidPlayer
	}

	var snapshot *model.Session
	err := s.withEntry(ctx, id, func(e *entry) error {
		session := e.session
		if session.IsPlayer(spectator) || session.IsSpectator(spectator) {
			snapshot = session.Clone()
			return nil
		}
		if !session.Options.AllowSpectators {
			return model.ErrSpectatorsDisabled
		}
		if s.cfg.MaxSpectators > 0 && len(session.Spectators) >= s.cfg.MaxSpectators {
			return model.ErrSpectatorLimit
		}

		session.Spectators = append(session.Spectators, spectator)
		s.persistSnapshot(session)
		snapshot = session.Clone()
		return nil
	})
	return snapshot, err
}

// RemoveSpectator removes a spectator if present
func (s *Store) RemoveSpectator(ctx context.Context, id model.SessionID, spectator model.PlayerID) (*model.Session, error) {
	var snapshot *model.Session
	err := s.withEntry(ctx, id, func(e *entry) error {
		if s.removeSpectatorLocked(e.session, spectator) {
			s.persistSnapshot(e.session)
		}
		snapshot = e.session.Clone()
		return nil
	})
	return snapshot, err
}

func (s *Store) removeSpectatorLocked(session *model.Session, spectator model.PlayerID) bool {
	for i, existing := range session.Spectators {
		if existing == spectator {
			session.Spectators = append(session.Spectators[:i], session.Spectators[i+1:]...)
			return true
		}
	}
	return false
}

// Abandon ends a non-terminal session. The opponent of actor wins if that
// slot is occupied; an empty or unknown actor leaves the winner undetermined.
// changed is false if the session was already terminal.
func (s *Store) Abandon(ctx context.Context, id model.SessionID, actor model.PlayerID) (*model.Session, bool, error) {
	var (
		snapshot *model.Session
		changed  bool
	)
	err := s.withEntry(ctx, id, func(e *entry) error {
		var err error
		changed, err = s.abandonLocked(e, actor)
		if err != nil {
			return err
		}
		snapshot = e.session.Clone()
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		s.logger.Info("session abandoned",
			slog.String("session_id", string(id)),
			slog.String("actor", string(actor)),
			slog.String("winner", string(snapshot.Outcome.Winner)),
		)
	}
	return snapshot, changed, nil
}

func (s *Store) abandonLocked(e *entry, actor model.PlayerID) (bool, error) {
	session := e.session
	if session.Status.IsTerminal() {
		return false, nil
	}

	now := s.clock.Now()
	session.Status = model.StatusAbandoned
	if actor != "" && session.IsPlayer(actor) {
		session.Outcome.Winner = session.OpponentOf(actor)
	}
	session.CompletedAt = &now
	s.stopTimer(e)
	s.gamesAbandoned.Add(1)

	s.persistSnapshot(session)
	if session.PlayerA != "" && session.PlayerB != "" {
		s.persistStats(session)
	}
	return true, nil
}

// Get returns a copy of the session, loading it from the cache or store if needed
func (s *Store) Get(ctx context.Context, id model.SessionID) (*model.Session, error) {
	var snapshot *model.Session
	err := s.withEntry(ctx, id, func(e *entry) error {
		snapshot = e.session.Clone()
		return nil
	})
	return snapshot, err
}

// Flush waits for every queued storage write to be applied
func (s *Store) Flush(ctx context.Context) error {
	return s.persist.flush(ctx)
}

// Close stops all session timers and drains pending storage writes
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	for _, e := range s.sessions {
		e.mu.Lock()
		s.stopTimer(e)
		e.mu.Unlock()
	}
	s.mu.Unlock()

	return s.persist.close(ctx)
}

// withEntry runs fn with the session's entry locked
func (s *Store) withEntry(ctx context.Context, id model.SessionID, fn func(e *entry) error) error {
	for {
		e, err := s.lookup(ctx, id)
		if err != nil {
			return err
		}
		e.mu.Lock()
		if e.evicted {
			// Swept between lookup and lock
			e.mu.Unlock()
			continue
		}
		err = fn(e)
		e.mu.Unlock()
		return err
	}
}

// lookup finds the entry in memory or hydrates it from the cache or store
func (s *Store) lookup(ctx context.Context, id model.SessionID) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}

	session, fromCache, err := s.hydrate(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return existing, nil
	}

	e = &entry{session: session}
	e.mu.Lock()
	s.armPhaseTimer(e)
	s.sessions[id] = e
	s.mu.Unlock()

	if !fromCache {
		s.persistCache(session)
	}
	e.mu.Unlock()

	s.logger.Debug("session hydrated",
		slog.String("session_id", string(id)),
		slog.Bool("from_cache", fromCache),
	)
	return e, nil
}

// hydrate reads the session from the cache, falling back to the store.
// Any failure that leaves no usable copy is reported as not found.
func (s *Store) hydrate(ctx context.Context, id model.SessionID) (*model.Session, bool, error) {
	data, err := s.cache.Get(ctx, id)
	switch {
	case err == nil:
		session, err := s.decodeChecked(id, data)
		if err == nil {
			return session, true, nil
		}
		s.logger.Warn("discarding cached session",
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()),
		)
	case !errors.Is(err, storage.ErrCacheMiss):
		s.logger.Warn("cache read failed",
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()),
		)
	}

	session, err := s.store.LoadSnapshot(ctx, id)
	if err != nil {
		if !errors.Is(err, model.ErrSessionNotFound) {
			s.logger.Error("store read failed",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()),
			)
		}
		return nil, false, model.ErrSessionNotFound
	}
	if err := s.check(id, session); err != nil {
		s.logger.Error("discarding stored session",
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()),
		)
		return nil, false, model.ErrSessionNotFound
	}
	return session, false, nil
}

func (s *Store) decodeChecked(id model.SessionID, data []byte) (*model.Session, error) {
	session, err := storage.DecodeSession(data)
	if err != nil {
		return nil, err
	}
	if err := s.check(id, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Store) check(id model.SessionID, session *model.Session) error {
	if session.ID != id {
		return fmt.Errorf("%w: id %s does not match %s", model.ErrInconsistentSession, session.ID, id)
	}
	return validator.CheckConsistency(session)
}

func (s *Store) currentNotifier() Notifier {
	s.notifierMu.RLock()
	defer s.notifierMu.RUnlock()
	return s.notifier
}
