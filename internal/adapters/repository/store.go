// Package repository persists player profiles and race sessions.
//
// Every backend exposes the same transactional view: a read-modify-write of
// one profile and one race commits atomically or not at all.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/pkg/metrics"
)

// Tx reads and stages writes inside one transaction. Values returned by a Tx
// are copies; mutate them and Put them back to persist.
type Tx interface {
	// Profile returns ErrProfileNotFound for unknown players.
	Profile(ctx context.Context, playerID string) (*model.Profile, error)
	PutProfile(ctx context.Context, p *model.Profile) error

	// Race returns ErrRaceNotFound for unknown race IDs.
	Race(ctx context.Context, raceID string) (*model.RaceSession, error)
	// CreateRace returns ErrRaceExists when the ID is already taken.
	CreateRace(ctx context.Context, s *model.RaceSession) error
	PutRace(ctx context.Context, s *model.RaceSession) error
}

// Store runs transactions against a backend.
type Store interface {
	// Update commits the staged writes if fn returns nil and discards them
	// otherwise. fn may run more than once on optimistic backends.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn read-only. Put calls inside View fail with ErrReadOnly.
	View(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// ProfileOrNew loads a profile, starting an empty one for first-time players.
// created reports whether the profile is the new, unsaved one.
func ProfileOrNew(ctx context.Context, tx Tx, playerID string, now time.Time) (p *model.Profile, created bool, err error) {
	p, err = tx.Profile(ctx, playerID)
	if errors.Is(err, ErrProfileNotFound) {
		return model.NewProfile(playerID, now), true, nil
	}
	return p, false, err
}

func observe(driver, op string, start time.Time) {
	metrics.RecordStoreLatency(driver, op, float64(time.Since(start).Milliseconds()))
}

func storeFailure(driver, kind string) {
	metrics.RecordErrorByComponent("repository", driver+"_"+kind)
}
