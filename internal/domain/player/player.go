// Package player reads and registers profiles.
package player

import (
	"context"
	"time"

	"github.com/okian/raceledger/internal/adapters/repository"
	"github.com/okian/raceledger/internal/domain/apperr"
	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/internal/domain/rank"
)

// View is a profile with its resolved rank.
type View struct {
	*model.Profile
	Rank string `json:"rank"`
}

// Service exposes profile reads and registration.
type Service struct {
	store repository.Store
	ranks *rank.Table
	now   func() time.Time
}

// NewService builds a Service. A nil clock means time.Now.
func NewService(store repository.Store, ranks *rank.Table, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, ranks: ranks, now: now}
}

// Get returns the player's profile.
func (s *Service) Get(ctx context.Context, playerID string) (View, error) {
	const op = "player.get"
	if playerID == "" {
		return View{}, apperr.New(apperr.InvalidArgument, op, "player id is required")
	}
	var p *model.Profile
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		p, err = tx.Profile(ctx, playerID)
		return err
	})
	if err != nil {
		return View{}, repository.AsAppError(op, err)
	}
	return View{Profile: p, Rank: s.ranks.Label(p.TrophyLevel)}, nil
}

// Register creates an empty profile. It reports false when the player
// already existed, leaving the stored profile as is.
func (s *Service) Register(ctx context.Context, playerID string) (View, bool, error) {
	const op = "player.register"
	if playerID == "" {
		return View{}, false, apperr.New(apperr.InvalidArgument, op, "player id is required")
	}
	var (
		p       *model.Profile
		created bool
	)
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		p, created, err = repository.ProfileOrNew(ctx, tx, playerID, s.now())
		if err != nil || !created {
			return err
		}
		return tx.PutProfile(ctx, p)
	})
	if err != nil {
		return View{}, false, repository.AsAppError(op, err)
	}
	return View{Profile: p, Rank: s.ranks.Label(p.TrophyLevel)}, created, nil
}
