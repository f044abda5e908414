package storage

import (
	"context"
	"time"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// NopCache is a Cache that never holds anything
type NopCache struct{}

var _ Cache = NopCache{}

func (NopCache) Put(ctx context.Context, id model.SessionID, data []byte, ttl time.Duration) error {
	return nil
}

func (NopCache) Get(ctx context.Context, id model.SessionID) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Delete(ctx context.Context, id model.SessionID) error {
	return nil
}

func (NopCache) Ping(ctx context.Context) error {
	return nil
}

func (NopCache) Close() error {
	return nil
}
