package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/okian/raceledger/internal/domain/apperr"
	"github.com/okian/raceledger/internal/domain/model"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{name: "memory", open: func(t *testing.T) Store {
			return NewMemoryStore(context.Background())
		}},
		{name: "bolt", open: func(t *testing.T) Store {
			s, err := NewBoltStore(filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err)
			return s
		}},
		{name: "sqlite", open: func(t *testing.T) Store {
			s, err := NewSQLStore(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "ledger.sqlite"))
			require.NoError(t, err)
			return s
		}},
		{name: "redis", open: func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			s, err := NewRedisStore(context.Background(), mr.Addr(), 0, WithRedisMaxRetries(200))
			require.NoError(t, err)
			return s
		}},
	}
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleProfile(id string) *model.Profile {
	p := model.NewProfile(id, epoch)
	p.TrophyLevel = 1250
	p.CareerEarning = 4000
	p.Coins = 3500
	p.Experience = 640
	p.Gems = 100
	p.TotalRaces = 7
	p.AddItem("Common Key", 2)
	p.SetFlag("unrankedToBronzeI", model.FlagClaimable)
	return p
}

func sampleRace(id, player string) *model.RaceSession {
	return &model.RaceSession{
		RaceID:                  id,
		PlayerID:                player,
		PlayerIndex:             1,
		Ratings:                 []float64{1200, 1250, 990.5},
		PreDeductedDelta:        -16,
		OriginalCalculatedDelta: -16,
		StartedAt:               epoch,
	}
}

func TestStores(t *testing.T) {
	for _, b := range backends() {
		b := b
		t.Run(b.name, func(t *testing.T) {
			t.Run("missing records", func(t *testing.T) {
				s := b.open(t)
				defer s.Close()
				err := s.View(context.Background(), func(tx Tx) error {
					_, err := tx.Profile(context.Background(), "nobody")
					require.ErrorIs(t, err, ErrProfileNotFound)
					_, err = tx.Race(context.Background(), "nothing")
					require.ErrorIs(t, err, ErrRaceNotFound)
					return nil
				})
				require.NoError(t, err)
			})

			t.Run("commit and read back", func(t *testing.T) {
				s := b.open(t)
				defer s.Close()
				ctx := context.Background()
				orig := 1266
				settledAt := epoch.Add(90 * time.Second)

				require.NoError(t, s.Update(ctx, func(tx Tx) error {
					if err := tx.PutProfile(ctx, sampleProfile("p1")); err != nil {
						return err
					}
					r := sampleRace("r1", "p1")
					r.OriginalTrophies = &orig
					if err := tx.CreateRace(ctx, r); err != nil {
						return err
					}
					// staged writes are visible to the same transaction
					got, err := tx.Race(ctx, "r1")
					require.NoError(t, err)
					require.Equal(t, "p1", got.PlayerID)
					return nil
				}))

				require.NoError(t, s.Update(ctx, func(tx Tx) error {
					r, err := tx.Race(ctx, "r1")
					if err != nil {
						return err
					}
					r.Settled = true
					r.SettledAt = &settledAt
					return tx.PutRace(ctx, r)
				}))

				require.NoError(t, s.View(ctx, func(tx Tx) error {
					p, err := tx.Profile(ctx, "p1")
					require.NoError(t, err)
					require.Equal(t, 1250, p.TrophyLevel)
					require.Equal(t, 4000, p.CareerEarning)
					require.Equal(t, 3500, p.Coins)
					require.Equal(t, 640, p.Experience)
					require.Equal(t, 100, p.Gems)
					require.Equal(t, 7, p.TotalRaces)
					require.Equal(t, 2, p.Inventory["Common Key"])
					require.Equal(t, model.FlagClaimable, p.Flag("unrankedToBronzeI"))
					require.True(t, p.CreatedAt.Equal(epoch))

					r, err := tx.Race(ctx, "r1")
					require.NoError(t, err)
					require.Equal(t, []float64{1200, 1250, 990.5}, r.Ratings)
					require.Equal(t, 1, r.PlayerIndex)
					require.Equal(t, -16, r.PreDeductedDelta)
					require.NotNil(t, r.OriginalTrophies)
					require.Equal(t, orig, *r.OriginalTrophies)
					require.True(t, r.Settled)
					require.NotNil(t, r.SettledAt)
					require.True(t, r.SettledAt.Equal(settledAt))
					return nil
				}))
			})

			t.Run("legacy race without baseline", func(t *testing.T) {
				s := b.open(t)
				defer s.Close()
				ctx := context.Background()
				require.NoError(t, s.Update(ctx, func(tx Tx) error {
					return tx.CreateRace(ctx, sampleRace("old", "p1"))
				}))
				require.NoError(t, s.View(ctx, func(tx Tx) error {
					r, err := tx.Race(ctx, "old")
					require.NoError(t, err)
					require.Nil(t, r.OriginalTrophies)
					require.Nil(t, r.SettledAt)
					require.False(t, r.Settled)
					return nil
				}))
			})

			t.Run("failed update discards writes", func(t *testing.T) {
				s := b.open(t)
				defer s.Close()
				ctx := context.Background()
				boom := errors.New("boom")
				err := s.Update(ctx, func(tx Tx) error {
					if err := tx.PutProfile(ctx, sampleProfile("p1")); err != nil {
						return err
					}
					return boom
				})
				require.ErrorIs(t, err, boom)
				require.NoError(t, s.View(ctx, func(tx Tx) error {
					_, err := tx.Profile(ctx, "p1")
					require.ErrorIs(t, err, ErrProfileNotFound)
					return nil
				}))
			})

			t.Run("race ids are unique", func(t *testing.T) {
				s := b.open(t)
				defer s.Close()
				ctx := context.Background()
				require.NoError(t, s.Update(ctx, func(tx Tx) error {
					return tx.CreateRace(ctx, sampleRace("r1", "p1"))
				}))
				err := s.Update(ctx, func(tx Tx) error {
					return tx.CreateRace(ctx, sampleRace("r1", "p2"))
				})
				require.ErrorIs(t, err, ErrRaceExists)
			})

			t.Run("view is read only", func(t *testing.T) {
				s := b.open(t)
				defer s.Close()
				ctx := context.Background()
				err := s.View(ctx, func(tx Tx) error {
					return tx.PutProfile(ctx, sampleProfile("p1"))
				})
				require.ErrorIs(t, err, ErrReadOnly)
			})

			t.Run("concurrent updates serialize", func(t *testing.T) {
				s := b.open(t)
				defer s.Close()
				ctx := context.Background()
				const writers = 8
				var wg sync.WaitGroup
				errs := make(chan error, writers)
				for i := 0; i < writers; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						errs <- s.Update(ctx, func(tx Tx) error {
							p, _, err := ProfileOrNew(ctx, tx, "p1", epoch)
							if err != nil {
								return err
							}
							p.TrophyLevel++
							return tx.PutProfile(ctx, p)
						})
					}()
				}
				wg.Wait()
				close(errs)
				for err := range errs {
					require.NoError(t, err)
				}
				require.NoError(t, s.View(ctx, func(tx Tx) error {
					p, err := tx.Profile(ctx, "p1")
					require.NoError(t, err)
					require.Equal(t, writers, p.TrophyLevel)
					return nil
				}))
			})
		})
	}
}

func TestMemoryStoreCounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore(ctx, WithSeedProfiles(sampleProfile("a"), sampleProfile("b"), nil), WithMetricsUpdateInterval(10*time.Millisecond))
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		return tx.CreateRace(ctx, sampleRace("r1", "a"))
	}))
	profiles, races := s.Counts()
	require.Equal(t, 2, profiles)
	require.Equal(t, 1, races)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	s := NewMemoryStore(context.Background())
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Update(ctx, func(tx Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestRedisStoreCommitsAgainstExternalWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	s, err := NewRedisStore(ctx, mr.Addr(), 0, WithRedisKeyPrefix("test"))
	require.NoError(t, err)
	defer s.Close()

	attempts := 0
	err = s.Update(ctx, func(tx Tx) error {
		attempts++
		p, _, err := ProfileOrNew(ctx, tx, "p1", epoch)
		if err != nil {
			return err
		}
		if attempts == 1 {
			// another writer lands between our read and our commit
			require.NoError(t, mr.Set("test:profile:p1", `{"player_id":"p1","trophy_level":500}`))
		}
		p.TrophyLevel += 10
		return tx.PutProfile(ctx, p)
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		p, err := tx.Profile(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, 510, p.TrophyLevel)
		return nil
	}))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: "memory"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Driver: "bolt", BoltPath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: "cassandra"})
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestAsAppError(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{err: ErrProfileNotFound, code: codes.NotFound},
		{err: pkgerrors.Wrap(ErrRaceNotFound, "lookup"), code: codes.NotFound},
		{err: ErrRaceExists, code: codes.AlreadyExists},
		{err: ErrConflict, code: codes.Aborted},
		{err: context.DeadlineExceeded, code: codes.Aborted},
		{err: errors.New("disk on fire"), code: codes.Internal},
		{err: apperr.New(apperr.FailedPrecondition, "x", "kept"), code: codes.FailedPrecondition},
	}
	for _, c := range cases {
		got := AsAppError("op", c.err)
		require.Equal(t, c.code, apperr.CodeOf(got), c.err.Error())
		require.ErrorIs(t, got, c.err)
	}
	require.NoError(t, AsAppError("op", nil))
}
