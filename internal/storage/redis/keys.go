package redis

import (
	"fmt"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// Key generation functions for each entity type

// sessionKey returns the key for a durable session snapshot
func (s *Storage) sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", s.cfg.KeyPrefix, id)
}

// movesKey returns the key for the LIST of moves in a session
func (s *Storage) movesKey(id model.SessionID) string {
	return fmt.Sprintf("%s:moves:%s", s.cfg.KeyPrefix, id)
}

// statsKey returns the key for the HASH of a player's statistics
func (s *Storage) statsKey(player model.PlayerID) string {
	return fmt.Sprintf("%s:stats:%s", s.cfg.KeyPrefix, player)
}

// playerSessionsIndexKey returns the key for the SET of sessions a player occupied
func (s *Storage) playerSessionsIndexKey(player model.PlayerID) string {
	return fmt.Sprintf("%s:idx:player_sessions:%s", s.cfg.KeyPrefix, player)
}

// cacheKey returns the key for a cached live session
func (s *Storage) cacheKey(id model.SessionID) string {
	return fmt.Sprintf("%s:cache:session:%s", s.cfg.KeyPrefix, id)
}

// Stats hash fields
const (
	fieldGamesPlayed = "games_played"
	fieldGamesWon    = "games_won"
	fieldGamesLost   = "games_lost"
	fieldGamesDrawn  = "games_drawn"
)
