package promotion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/okian/raceledger/internal/adapters/repository"
	"github.com/okian/raceledger/internal/domain/apperr"
	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/pkg/logger"
	"github.com/okian/raceledger/pkg/metrics"
)

// Granter applies reward payloads to a profile inside a transaction.
type Granter interface {
	GrantCurrency(p *model.Profile, gems int)
	GrantItem(p *model.Profile, item string, n int)
}

// ProfileGranter credits gems and inventory on the profile itself.
type ProfileGranter struct{}

func (ProfileGranter) GrantCurrency(p *model.Profile, gems int) { p.Gems += gems }

func (ProfileGranter) GrantItem(p *model.Profile, item string, n int) { p.AddItem(item, n) }

// ClaimResult describes what a claim granted.
type ClaimResult struct {
	RewardKey string `json:"reward_key"`
	Gems      int    `json:"gems,omitempty"`
	Item      string `json:"item,omitempty"`
}

// RewardStatus pairs a reward with one player's flag.
type RewardStatus struct {
	Reward
	State model.FlagState `json:"state"`
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithGranter replaces ProfileGranter.
func WithGranter(g Granter) Option {
	return func(l *Ledger) {
		if g != nil {
			l.granter = g
		}
	}
}

// WithLogger sets the ledger's logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithPublisher sets where claim notifications go.
func WithPublisher(p model.Publisher) Option {
	return func(l *Ledger) {
		if p != nil {
			l.pub = p
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger moves promotion flags and pays out claims.
type Ledger struct {
	store   repository.Store
	catalog *Catalog
	granter Granter
	log     logger.Logger
	pub     model.Publisher
	now     func() time.Time
}

// NewLedger builds a ledger over store and catalog.
func NewLedger(store repository.Store, catalog *Catalog, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		catalog: catalog,
		granter: ProfileGranter{},
		log:     logger.Nop(),
		pub:     model.Discard{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Catalog returns the reward catalog.
func (l *Ledger) Catalog() *Catalog { return l.catalog }

// MarkCrossed makes every reward between from and to claimable on p, unless
// it was already reached. It returns only the rewards whose flag changed.
func (l *Ledger) MarkCrossed(p *model.Profile, from, to string) []Reward {
	var changed []Reward
	for _, r := range l.catalog.Crossed(from, to) {
		if p.Flag(r.Key) != model.FlagNotReached {
			continue
		}
		p.SetFlag(r.Key, model.FlagClaimable)
		changed = append(changed, r)
	}
	return changed
}

// Claim pays out a claimable reward once.
func (l *Ledger) Claim(ctx context.Context, playerID, key string) (ClaimResult, error) {
	const op = "promotion.claim"
	if playerID == "" {
		return ClaimResult{}, apperr.New(apperr.InvalidArgument, op, "player id is required")
	}
	reward, ok := l.catalog.ByKey(key)
	if !ok {
		metrics.RecordRewardClaim("invalid_key")
		return ClaimResult{}, apperr.Newf(apperr.InvalidArgument, op, "unknown reward key %q", key)
	}

	err := l.store.Update(ctx, func(tx repository.Tx) error {
		p, err := tx.Profile(ctx, playerID)
		if err != nil {
			return repository.AsAppError(op, err)
		}
		switch p.Flag(key) {
		case model.FlagClaimable:
		case model.FlagClaimed:
			return apperr.Wrap(apperr.AlreadyExists, op, ErrAlreadyClaimed)
		default:
			return apperr.Wrap(apperr.FailedPrecondition, op, ErrNotClaimable)
		}

		p.SetFlag(key, model.FlagClaimed)
		if reward.Gems > 0 {
			l.granter.GrantCurrency(p, reward.Gems)
		}
		if reward.Item != nil {
			l.granter.GrantItem(p, reward.Item.Name(), 1)
		}
		p.UpdatedAt = l.now()
		return repository.AsAppError(op, tx.PutProfile(ctx, p))
	})
	if err != nil {
		err = repository.AsAppError(op, err)
		metrics.RecordRewardClaim(claimOutcome(err))
		l.log.Debug(ctx, "claim rejected",
			logger.String("player_id", playerID),
			logger.String("reward_key", key),
			logger.Error(err))
		return ClaimResult{}, err
	}

	res := ClaimResult{RewardKey: key, Gems: reward.Gems}
	if reward.Item != nil {
		res.Item = reward.Item.Name()
	}
	metrics.RecordRewardClaim("granted")
	l.log.Info(ctx, "reward claimed",
		logger.String("player_id", playerID),
		logger.String("reward_key", key),
		logger.Int("gems", res.Gems),
		logger.String("item", res.Item))
	l.pub.Publish(ctx, model.Notification{
		ID:       uuid.NewString(),
		Kind:     model.KindRewardClaimed,
		PlayerID: playerID,
		At:       l.now(),
		Data:     res,
	})
	return res, nil
}

// Status lists every reward with the player's flag, in ladder order.
func (l *Ledger) Status(ctx context.Context, playerID string) ([]RewardStatus, error) {
	const op = "promotion.status"
	var p *model.Profile
	err := l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		p, err = tx.Profile(ctx, playerID)
		return err
	})
	if err != nil {
		return nil, repository.AsAppError(op, err)
	}
	rewards := l.catalog.Rewards()
	out := make([]RewardStatus, len(rewards))
	for i, r := range rewards {
		out[i] = RewardStatus{Reward: r, State: p.Flag(r.Key)}
	}
	return out, nil
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrNotClaimable):
		return "not_claimable"
	case errors.Is(err, repository.ErrProfileNotFound):
		return "no_profile"
	default:
		return "error"
	}
}
