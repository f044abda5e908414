package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// EncodeSession serializes a session for the cache and snapshot columns
func EncodeSession(s *model.Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return data, nil
}

// DecodeSession parses a session produced by EncodeSession
func DecodeSession(data []byte) (*model.Session, error) {
	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Moves == nil {
		s.Moves = []model.Move{}
	}
	if s.Spectators == nil {
		s.Spectators = []model.PlayerID{}
	}
	return &s, nil
}

// SortByCreatedDesc orders sessions newest first and trims to limit
func SortByCreatedDesc(sessions []*model.Session, limit int) []*model.Session {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions
}
