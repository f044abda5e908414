package protocol

import (
	"context"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// IdentityVerifier turns the credentials presented on authenticate into a trusted player id
type IdentityVerifier interface {
	Verify(ctx context.Context, playerID, token string) (model.PlayerID, error)
}

// TrustedIdentity accepts the presented player id as is
type TrustedIdentity struct{}

// Verify implements IdentityVerifier
func (TrustedIdentity) Verify(ctx context.Context, playerID, token string) (model.PlayerID, error) {
	if playerID == "" {
		return "", model.ErrInvalidPlayer
	}
	return model.PlayerID(playerID), nil
}
