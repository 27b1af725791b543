// Package settlement runs the two-phase race settlement.
//
// Start pre-deducts the worst-case (last place) trophy change so a player who
// disconnects never gains. Finish replaces that estimate with the real
// outcome, anchored on the trophy level recorded at Start, and pays coins and
// experience. A race settles at most once.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/okian/raceledger/internal/adapters/repository"
	"github.com/okian/raceledger/internal/domain/apperr"
	"github.com/okian/raceledger/internal/domain/dedupe"
	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/internal/domain/promotion"
	"github.com/okian/raceledger/internal/domain/rank"
	"github.com/okian/raceledger/internal/domain/rating"
	"github.com/okian/raceledger/internal/domain/reward"
	"github.com/okian/raceledger/pkg/logger"
	"github.com/okian/raceledger/pkg/metrics"
)

// StartRequest opens a race for one player.
type StartRequest struct {
	PlayerID string
	RaceID   string
	Lobby    model.Lobby
}

// StartResult reports the pre-deduction.
type StartResult struct {
	RaceID string `json:"race_id"`
	// PreDeductedTrophies is the change actually applied, never below the floor.
	PreDeductedTrophies int `json:"pre_deducted_trophies"`
	// CalculatedPenalty is the unfloored last-place delta.
	CalculatedPenalty int  `json:"calculated_penalty"`
	TrophyFloorHit    bool `json:"trophy_floor_hit"`
	TrophyLevel       int  `json:"trophy_level"`
}

// FinishRequest closes a race. Place is 1-based; 0 is read as 1.
type FinishRequest struct {
	PlayerID    string
	RaceID      string
	FinishOrder []int
	Place       int
	CoinBooster bool
	ExpBooster  bool
}

// FinishResult reports the settlement.
type FinishResult struct {
	RaceID string `json:"race_id"`
	// TrophiesActual is the true outcome delta against the start baseline.
	TrophiesActual int `json:"trophies_actual"`
	// TrophiesActualSettlement is the change applied on top of the
	// pre-deducted level.
	TrophiesActualSettlement int    `json:"trophies_actual_settlement"`
	PreDeductedAmount        int    `json:"pre_deducted_amount"`
	TrophyLevel              int    `json:"trophy_level"`
	Coins                    int    `json:"coins"`
	Exp                      int    `json:"exp"`
	OldRank                  string `json:"old_rank"`
	NewRank                  string `json:"new_rank"`
	Promoted                 bool   `json:"promoted"`
	Demoted                  bool   `json:"demoted"`
	// PromotionRewardField is the reward key of the highest rank-up crossed.
	PromotionRewardField string `json:"promotion_reward_field,omitempty"`
	// PromotionRewardFields lists every crossed key, lowest first.
	PromotionRewardFields    []string `json:"promotion_reward_fields,omitempty"`
	PromotionRewardAvailable bool     `json:"promotion_reward_available"`
}

// Controller owns the race state machine: Started -> Settled.
type Controller struct {
	store    repository.Store
	ranks    *rank.Table
	rating   *rating.Engine
	rewards  *reward.Calculator
	ledger   *promotion.Ledger
	inflight dedupe.Deduper
	pub      model.Publisher
	log      logger.Logger
	now      func() time.Time
}

// New wires a controller. All collaborators are required.
func New(store repository.Store, ranks *rank.Table, engine *rating.Engine, rewards *reward.Calculator, ledger *promotion.Ledger, opts ...Option) (*Controller, error) {
	if store == nil || ranks == nil || engine == nil || rewards == nil || ledger == nil {
		return nil, apperr.New(apperr.InvalidArgument, "settlement.new", "store, ranks, rating, rewards and ledger are required")
	}
	c := &Controller{
		store:    store,
		ranks:    ranks,
		rating:   engine,
		rewards:  rewards,
		ledger:   ledger,
		inflight: dedupe.NewInMemoryDeduper(),
		pub:      model.Discard{},
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start records a new race and applies the floor-protected worst-case
// deduction. It is not idempotent: retry only with a fresh race id.
func (c *Controller) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	const op = "settlement.start"
	began := time.Now()
	defer func() { metrics.RecordSettlementLatency("start", float64(time.Since(began).Milliseconds())) }()

	if err := requireIDs(op, req.PlayerID, req.RaceID); err != nil {
		return StartResult{}, c.reject(ctx, "start", req.RaceID, err)
	}
	lobby := model.NewLobby(req.Lobby.Ratings, req.Lobby.PlayerIndex)
	penalty, err := c.rating.ComputeLastPlaceDelta(lobby.PlayerIndex, lobby.Ratings)
	if err != nil {
		return StartResult{}, c.reject(ctx, "start", req.RaceID, err)
	}

	var res StartResult
	err = c.store.Update(ctx, func(tx repository.Tx) error {
		p, err := tx.Profile(ctx, req.PlayerID)
		if err != nil {
			return repository.AsAppError(op, err)
		}
		current := p.TrophyLevel
		if current < 0 {
			current = 0
		}
		next := current + penalty
		if next < 0 {
			next = 0
		}
		applied := next - current
		now := c.now()
		baseline := current

		err = tx.CreateRace(ctx, &model.RaceSession{
			RaceID:                  req.RaceID,
			PlayerID:                req.PlayerID,
			PlayerIndex:             lobby.PlayerIndex,
			Ratings:                 lobby.Ratings,
			PreDeductedDelta:        applied,
			OriginalCalculatedDelta: penalty,
			OriginalTrophies:        &baseline,
			StartedAt:               now,
		})
		if errors.Is(err, repository.ErrRaceExists) {
			return apperr.Wrapf(apperr.AlreadyExists, op, err, "race %s already started", req.RaceID)
		}
		if err != nil {
			return repository.AsAppError(op, err)
		}

		p.TrophyLevel = next
		p.UpdatedAt = now
		if err := tx.PutProfile(ctx, p); err != nil {
			return repository.AsAppError(op, err)
		}
		res = StartResult{
			RaceID:              req.RaceID,
			PreDeductedTrophies: applied,
			CalculatedPenalty:   penalty,
			TrophyFloorHit:      applied != penalty,
			TrophyLevel:         next,
		}
		return nil
	})
	if err != nil {
		return StartResult{}, c.reject(ctx, "start", req.RaceID, repository.AsAppError(op, err))
	}

	metrics.RecordRaceStarted(res.TrophyFloorHit)
	c.log.Info(ctx, "race started",
		logger.String("race_id", req.RaceID),
		logger.String("player_id", req.PlayerID),
		logger.Int("lobby_size", lobby.Size()),
		logger.Int("calculated_penalty", penalty),
		logger.Int("pre_deducted", res.PreDeductedTrophies),
		logger.Bool("floor_hit", res.TrophyFloorHit))
	c.publish(ctx, model.KindRaceStarted, req.PlayerID, req.RaceID, res)
	return res, nil
}

// Finish settles a started race exactly once. A repeat call fails with
// ErrAlreadySettled and changes nothing.
func (c *Controller) Finish(ctx context.Context, req FinishRequest) (FinishResult, error) {
	const op = "settlement.finish"
	began := time.Now()
	defer func() { metrics.RecordSettlementLatency("finish", float64(time.Since(began).Milliseconds())) }()

	if err := requireIDs(op, req.PlayerID, req.RaceID); err != nil {
		return FinishResult{}, c.reject(ctx, "finish", req.RaceID, err)
	}
	if req.Place < 0 {
		return FinishResult{}, c.reject(ctx, "finish", req.RaceID, apperr.Newf(apperr.InvalidArgument, op, "place %d is negative", req.Place))
	}
	place := req.Place
	if place == 0 {
		place = 1
	}

	if c.inflight.SeenAndRecord(ctx, req.RaceID) {
		return FinishResult{}, c.reject(ctx, "finish", req.RaceID, apperr.Wrap(apperr.Aborted, op, ErrInFlight))
	}
	defer c.inflight.Unrecord(ctx, req.RaceID)

	var (
		res     FinishResult
		changed []promotion.Reward
	)
	err := c.store.Update(ctx, func(tx repository.Tx) error {
		changed = nil

		s, err := tx.Race(ctx, req.RaceID)
		if err != nil {
			return repository.AsAppError(op, err)
		}
		if s.PlayerID != req.PlayerID {
			return apperr.Wrap(apperr.FailedPrecondition, op, ErrNotOwner)
		}
		if s.Settled {
			return apperr.Wrap(apperr.AlreadyExists, op, ErrAlreadySettled)
		}
		if place > len(s.Ratings) {
			return apperr.Newf(apperr.InvalidArgument, op, "place %d outside 1..%d", place, len(s.Ratings))
		}

		p, err := tx.Profile(ctx, req.PlayerID)
		if err != nil {
			return repository.AsAppError(op, err)
		}
		current := p.TrophyLevel
		if current < 0 {
			current = 0
		}
		original := s.BaselineTrophies(current)

		actual, err := c.rating.ComputeDelta(s.PlayerIndex, req.FinishOrder, s.Ratings)
		if err != nil {
			return err
		}
		final := original + actual
		if final < 0 {
			final = 0
		}

		oldRank, newRank := c.ranks.Label(original), c.ranks.Label(final)
		oldIdx, newIdx := c.ranks.ResolveIndex(original), c.ranks.ResolveIndex(final)

		coins, err := c.rewards.ComputeCoins(oldRank, place, s.Ratings, s.PlayerIndex, req.CoinBooster)
		if err != nil {
			return err
		}
		exp := c.rewards.ComputeExp(original, place, oldRank, req.ExpBooster)

		res = FinishResult{
			RaceID:                   req.RaceID,
			TrophiesActual:           actual,
			TrophiesActualSettlement: final - current,
			PreDeductedAmount:        s.PreDeductedDelta,
			TrophyLevel:              final,
			Coins:                    coins,
			Exp:                      exp,
			OldRank:                  oldRank,
			NewRank:                  newRank,
			Promoted:                 newIdx > oldIdx,
			Demoted:                  newIdx < oldIdx,
		}
		if res.Promoted {
			for _, r := range c.ledger.Catalog().Crossed(oldRank, newRank) {
				res.PromotionRewardFields = append(res.PromotionRewardFields, r.Key)
			}
			if n := len(res.PromotionRewardFields); n > 0 {
				res.PromotionRewardField = res.PromotionRewardFields[n-1]
			}
			changed = c.ledger.MarkCrossed(p, oldRank, newRank)
			res.PromotionRewardAvailable = len(changed) > 0
		}

		now := c.now()
		p.TrophyLevel = final
		p.CareerEarning += coins
		p.Coins += coins
		p.Experience += exp
		p.TotalRaces++
		p.UpdatedAt = now
		s.Settled = true
		s.SettledAt = &now

		if err := tx.PutProfile(ctx, p); err != nil {
			return repository.AsAppError(op, err)
		}
		return repository.AsAppError(op, tx.PutRace(ctx, s))
	})
	if err != nil {
		return FinishResult{}, c.reject(ctx, "finish", req.RaceID, repository.AsAppError(op, err))
	}

	metrics.RecordRaceSettled(float64(res.TrophiesActual), float64(res.Coins))
	if res.Promoted {
		metrics.RecordPromotion(len(changed))
	}
	if res.Demoted {
		metrics.RecordDemotion()
	}
	c.log.Info(ctx, "race settled",
		logger.String("race_id", req.RaceID),
		logger.String("player_id", req.PlayerID),
		logger.Int("trophies_actual", res.TrophiesActual),
		logger.Int("settlement", res.TrophiesActualSettlement),
		logger.Int("trophy_level", res.TrophyLevel),
		logger.Int("coins", res.Coins),
		logger.Int("exp", res.Exp),
		logger.String("old_rank", res.OldRank),
		logger.String("new_rank", res.NewRank))
	c.publish(ctx, model.KindRaceSettled, req.PlayerID, req.RaceID, res)
	return res, nil
}

// Session returns a retained race session owned by playerID.
func (c *Controller) Session(ctx context.Context, playerID, raceID string) (*model.RaceSession, error) {
	const op = "settlement.session"
	if err := requireIDs(op, playerID, raceID); err != nil {
		return nil, err
	}
	var s *model.RaceSession
	err := c.store.View(ctx, func(tx repository.Tx) error {
		var err error
		s, err = tx.Race(ctx, raceID)
		return err
	})
	if err != nil {
		return nil, repository.AsAppError(op, err)
	}
	if s.PlayerID != playerID {
		// other players' races are indistinguishable from missing ones
		return nil, apperr.Wrap(apperr.NotFound, op, repository.ErrRaceNotFound)
	}
	return s, nil
}

func requireIDs(op, playerID, raceID string) error {
	if playerID == "" {
		return apperr.New(apperr.InvalidArgument, op, "player id is required")
	}
	if raceID == "" {
		return apperr.New(apperr.InvalidArgument, op, "race id is required")
	}
	return nil
}

func (c *Controller) reject(ctx context.Context, stage, raceID string, err error) error {
	code := apperr.CodeOf(err)
	metrics.RecordSettlementError(stage, code.String())
	fields := []logger.Field{
		logger.String("stage", stage),
		logger.String("race_id", raceID),
		logger.String("code", code.String()),
		logger.Error(err),
	}
	if code == apperr.Internal || code == apperr.Aborted {
		c.log.Warn(ctx, "settlement failed", fields...)
	} else {
		c.log.Debug(ctx, "settlement rejected", fields...)
	}
	return err
}

func (c *Controller) publish(ctx context.Context, kind model.NotificationKind, playerID, raceID string, data any) {
	c.pub.Publish(ctx, model.Notification{
		ID:       uuid.NewString(),
		Kind:     kind,
		PlayerID: playerID,
		RaceID:   raceID,
		At:       c.now(),
		Data:     data,
	})
}
