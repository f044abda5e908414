package protocol

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/tictactoe-go/internal/api/apierr"
	"github.com/mcoot/tictactoe-go/internal/model"
)

func (d *Dispatcher) handleAuthenticate(ctx context.Context, call *Call, req AuthenticateRequest) (any, error) {
	player, err := d.verifier.Verify(ctx, req.PlayerID, req.Token)
	if err != nil {
		if errors.Is(err, model.ErrInvalidPlayer) {
			return nil, err
		}
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, apierr.New(apierr.KindAuthRequired, apierr.CodeAuthRequired, "Authentication failed")
	}

	if err := d.registry.Authenticate(call.ConnID, player); err != nil {
		return nil, err
	}
	call.Player = player

	if l := d.authListener(); l != nil {
		l.PlayerAuthenticated(player)
	}

	// Pick up the sessions a previous connection was following
	var resubscribed []model.SessionID
	for _, id := range d.sessions.ActiveSessionsFor(player) {
		if err := d.registry.Subscribe(call.ConnID, id); err == nil {
			resubscribed = append(resubscribed, id)
		}
	}

	return AuthenticateResponse{
		Success:      true,
		PlayerID:     player,
		Message:      "Authentication successful",
		Resubscribed: resubscribed,
	}, nil
}

func (d *Dispatcher) handlePing(ctx context.Context, call *Call, req EmptyRequest) (any, error) {
	return PingResponse{
		Success:    true,
		Pong:       true,
		ServerTime: d.clock.Now().UnixMilli(),
	}, nil
}

func (d *Dispatcher) handleCreateGame(ctx context.Context, call *Call, req CreateGameRequest) (any, error) {
	opts := model.Options{AllowSpectators: true}
	if o := req.GameOptions; o != nil {
		if o.TimeLimit != nil {
			opts.MoveTimeout = time.Duration(*o.TimeLimit) * time.Millisecond
		}
		if o.AllowSpectators != nil {
			opts.AllowSpectators = *o.AllowSpectators
		}
	}

	session, err := d.sessions.Create(ctx, call.Player, opts)
	if err != nil {
		return nil, err
	}
	if err := d.registry.Subscribe(call.ConnID, session.ID); err != nil {
		return nil, err
	}

	call.broadcast(session.ID, model.NewEvent(model.EventGameCreated, model.GameCreatedPayload{
		SessionID: session.ID,
		State:     session.ViewFor(call.Player),
	}, d.clock.Now()))

	return GameResponse{
		Success: true,
		Game:    session.ViewFor(call.Player),
		Message: "Game created successfully",
	}, nil
}

func (d *Dispatcher) handleJoinGame(ctx context.Context, call *Call, req GameRequest) (any, error) {
	id := model.SessionID(req.GameID)
	d.hold(call, id)
	session, err := d.sessions.Join(ctx, id, call.Player)
	if err != nil {
		return nil, err
	}
	if err := d.registry.Subscribe(call.ConnID, id); err != nil {
		return nil, err
	}

	call.broadcast(id, model.NewEvent(model.EventPlayerJoined, model.PlayerJoinedPayload{
		SessionID: id,
		PlayerID:  call.Player,
		State:     session.ViewFor(""),
	}, d.clock.Now()))

	return GameResponse{
		Success: true,
		Game:    session.ViewFor(call.Player),
		Message: "Joined game successfully",
	}, nil
}

func (d *Dispatcher) handleMakeMove(ctx context.Context, call *Call, req MakeMoveRequest) (any, error) {
	id := model.SessionID(req.GameID)
	d.hold(call, id)
	result, err := d.sessions.ApplyMove(ctx, id, call.Player, *req.Position)
	if err != nil {
		return nil, err
	}
	session := result.Session
	now := d.clock.Now()

	call.broadcast(id, model.NewEvent(model.EventMoveMade, model.MoveMadePayload{
		SessionID: id,
		Move:      result.Move,
		State:     session.ViewFor(""),
	}, now))

	gameResult := GameResult{IsGameOver: session.Status.IsTerminal()}
	if gameResult.IsGameOver {
		gameResult.Winner = session.Outcome.Winner
		gameResult.Draw = session.Outcome.Draw
		gameResult.WinningLine = session.WinningLine

		call.broadcast(id, model.NewEvent(model.EventGameEnded, model.GameEndedPayload{
			SessionID:   id,
			Winner:      session.Outcome.Winner,
			Draw:        session.Outcome.Draw,
			WinningLine: session.WinningLine,
			FinalState:  session.ViewFor(""),
		}, now))
	}

	return MoveResponse{
		Success:    true,
		Game:       session.ViewFor(call.Player),
		Move:       result.Move,
		GameResult: gameResult,
	}, nil
}

func (d *Dispatcher) handleSubscribeGame(ctx context.Context, call *Call, req GameRequest) (any, error) {
	id := model.SessionID(req.GameID)
	d.hold(call, id)
	session, err := d.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsPlayer(call.Player) {
		if session, err = d.sessions.AddSpectator(ctx, id, call.Player); err != nil {
			return nil, err
		}
	}
	if err := d.registry.Subscribe(call.ConnID, id); err != nil {
		return nil, err
	}

	return SubscribeResponse{
		Success:    true,
		Game:       session.ViewFor(call.Player),
		Subscribed: true,
	}, nil
}

func (d *Dispatcher) handleUnsubscribeGame(ctx context.Context, call *Call, req GameRequest) (any, error) {
	id := model.SessionID(req.GameID)
	d.registry.Unsubscribe(call.ConnID, id)

	// The session may already have been evicted
	if _, err := d.sessions.RemoveSpectator(ctx, id, call.Player); err != nil && !errors.Is(err, model.ErrSessionNotFound) {
		return nil, err
	}

	return UnsubscribeResponse{
		Success:      true,
		GameID:       id,
		Unsubscribed: true,
	}, nil
}

func (d *Dispatcher) handleAbandonGame(ctx context.Context, call *Call, req GameRequest) (any, error) {
	id := model.SessionID(req.GameID)
	d.hold(call, id)
	current, err := d.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsPlayer(call.Player) {
		return nil, model.ErrNotParticipant
	}

	session, changed, err := d.sessions.Abandon(ctx, id, call.Player)
	if err != nil {
		return nil, err
	}
	if !changed {
		return GameResponse{
			Success: true,
			Game:    session.ViewFor(call.Player),
			Message: "Game already finished",
		}, nil
	}

	call.broadcast(id, d.abandonedEvent(session, call.Player, model.ReasonForfeit))

	return GameResponse{
		Success: true,
		Game:    session.ViewFor(call.Player),
		Message: "Game abandoned",
	}, nil
}

func (d *Dispatcher) handleGetGameState(ctx context.Context, call *Call, req GameRequest) (any, error) {
	session, err := d.sessions.Get(ctx, model.SessionID(req.GameID))
	if err != nil {
		return nil, err
	}
	return GameResponse{
		Success: true,
		Game:    session.ViewFor(call.Player),
	}, nil
}

func (d *Dispatcher) handleGetPlayerGames(ctx context.Context, call *Call, req PlayerGamesRequest) (any, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 20
	}

	sessions, err := d.sessions.PlayerSessions(ctx, call.Player, limit)
	if err != nil {
		return nil, err
	}

	games := make([]PlayerGame, 0, len(sessions))
	for _, s := range sessions {
		games = append(games, PlayerGame{
			GameID:      s.ID,
			Status:      s.Status,
			Opponent:    s.OpponentOf(call.Player),
			Winner:      s.Outcome.Winner,
			Draw:        s.Outcome.Draw,
			CreatedAt:   s.CreatedAt,
			LastMoveAt:  s.LastMoveAt,
			CompletedAt: s.CompletedAt,
		})
	}

	resp := PlayerGamesResponse{Success: true, Games: games}
	stats, err := d.sessions.PlayerStats(ctx, call.Player)
	if err != nil {
		d.logger.Warn("failed to load player stats",
			slog.String("player_id", string(call.Player)),
			slog.String("error", err.Error()),
		)
	} else {
		resp.Stats = &stats
	}
	return resp, nil
}

func (d *Dispatcher) handleGetStats(ctx context.Context, call *Call, req EmptyRequest) (any, error) {
	return StatsResponse{Success: true, Stats: d.Stats()}, nil
}
