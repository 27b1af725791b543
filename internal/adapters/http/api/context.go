package api

import (
	"context"

	"github.com/okian/raceledger/internal/adapters/http/auth"
	"github.com/okian/raceledger/internal/domain/apperr"
)

func withPlayer(ctx context.Context, id string) context.Context {
	return auth.WithPlayer(ctx, id)
}

func playerFrom(ctx context.Context) (string, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return "", apperr.Wrap(apperr.Unauthenticated, "api.player", ErrNoPlayer)
	}
	return id, nil
}
