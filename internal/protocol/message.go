package protocol

import (
	"encoding/json"
	"time"

	"github.com/mcoot/tictactoe-go/internal/api/apierr"
	"github.com/mcoot/tictactoe-go/internal/model"
)

// Inbound message types
const (
	TypeAuthenticate    = "authenticate"
	TypeCreateGame      = "create_game"
	TypeJoinGame        = "join_game"
	TypeMakeMove        = "make_move"
	TypeSubscribeGame   = "subscribe_game"
	TypeUnsubscribeGame = "unsubscribe_game"
	TypeAbandonGame     = "abandon_game"
	TypePing            = "ping"
	TypeGetGameState    = "get_game_state"
	TypeGetPlayerGames  = "get_player_games"
	TypeGetStats        = "get_stats"
)

// Outbound message types that are not events
const (
	TypeResponse = "response"
	TypeError    = "error"
)

// Request is the inbound envelope
type Request struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response answers a request
type Response struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorMessage reports a failed request
type ErrorMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Error     apierr.APIError `json:"error"`
	Timestamp time.Time       `json:"timestamp"`
}

// Request payloads

type AuthenticateRequest struct {
	PlayerID string `json:"playerId" validate:"required,max=128"`
	Token    string `json:"token" validate:"omitempty,max=4096"`
}

type GameOptions struct {
	TimeLimit       *int  `json:"timeLimit" validate:"omitempty,min=30000,max=600000"`
	AllowSpectators *bool `json:"allowSpectators"`
}

type CreateGameRequest struct {
	GameOptions *GameOptions `json:"gameOptions"`
}

type GameRequest struct {
	GameID string `json:"gameId" validate:"required,max=64"`
}

type MakeMoveRequest struct {
	GameID   string `json:"gameId" validate:"required,max=64"`
	Position *int   `json:"position" validate:"required,min=0,max=8"`
}

type PlayerGamesRequest struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=100"`
}

type EmptyRequest struct{}

// Response payloads

type AuthenticateResponse struct {
	Success      bool              `json:"success"`
	PlayerID     model.PlayerID    `json:"playerId"`
	Message      string            `json:"message"`
	Resubscribed []model.SessionID `json:"resubscribed,omitempty"`
}

type GameResponse struct {
	Success bool              `json:"success"`
	Game    model.SessionView `json:"game"`
	Message string            `json:"message,omitempty"`
}

// GameResult summarizes the board after a move
type GameResult struct {
	IsGameOver  bool           `json:"isGameOver"`
	Winner      model.PlayerID `json:"winner,omitempty"`
	Draw        bool           `json:"draw,omitempty"`
	WinningLine []int          `json:"winningLine,omitempty"`
}

type MoveResponse struct {
	Success    bool              `json:"success"`
	Game       model.SessionView `json:"game"`
	Move       model.Move        `json:"move"`
	GameResult GameResult        `json:"gameResult"`
}

type SubscribeResponse struct {
	Success    bool              `json:"success"`
	Game       model.SessionView `json:"game"`
	Subscribed bool              `json:"subscribed"`
}

type UnsubscribeResponse struct {
	Success      bool            `json:"success"`
	GameID       model.SessionID `json:"gameId"`
	Unsubscribed bool            `json:"unsubscribed"`
}

type PingResponse struct {
	Success    bool  `json:"success"`
	Pong       bool  `json:"pong"`
	ServerTime int64 `json:"serverTime"`
}

// PlayerGame is one row of a player's game history
type PlayerGame struct {
	GameID      model.SessionID `json:"gameId"`
	Status      model.Status    `json:"status"`
	Opponent    model.PlayerID  `json:"opponent,omitempty"`
	Winner      model.PlayerID  `json:"winner,omitempty"`
	Draw        bool            `json:"draw,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	LastMoveAt  time.Time       `json:"lastMoveAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

type PlayerGamesResponse struct {
	Success bool               `json:"success"`
	Games   []PlayerGame       `json:"games"`
	Stats   *model.PlayerStats `json:"stats,omitempty"`
}

type StatsResponse struct {
	Success bool  `json:"success"`
	Stats   Stats `json:"stats"`
}
