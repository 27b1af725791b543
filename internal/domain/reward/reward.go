// Package reward converts a finish into coins and experience.
package reward

import (
	"math"

	"github.com/okian/raceledger/internal/domain/apperr"
	"github.com/okian/raceledger/internal/domain/rank"
	"github.com/okian/raceledger/internal/domain/rating"
)

// Calculator is safe for concurrent use.
type Calculator struct {
	cfg    Config
	ranks  *rank.Table
	rating *rating.Engine
}

// RankReward is one row of the public reward table.
type RankReward struct {
	RankName  string `json:"rank_name"`
	MaxReward int    `json:"max_reward"`
}

// New builds a Calculator. The rating engine supplies lobby difficulty.
func New(cfg Config, ranks *rank.Table, engine *rating.Engine) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ranks == nil || engine == nil {
		return nil, apperr.New(apperr.InvalidArgument, "reward.new", "rank table and rating engine are required")
	}
	return &Calculator{cfg: cfg, ranks: ranks, rating: engine}, nil
}

// DifficultyMultiplier maps the lobby's average expected score onto
// [floor, ceiling]. Weaker-than-lobby players (avg < 0.5) earn more.
func (c *Calculator) DifficultyMultiplier(avgExpected float64) float64 {
	x := math.Max(-0.5, math.Min(0.5, 0.5-avgExpected)) / 0.5
	if x >= 0 {
		return 1.0 + x*(c.cfg.DifficultyCeiling-1.0)
	}
	return 1.0 + x*(1.0-c.cfg.DifficultyFloor)
}

// ComputeCoins returns the coin payout for finishing at place (1-based)
// while holding rankLabel.
func (c *Calculator) ComputeCoins(rankLabel string, place int, ratings []float64, playerIndex int, coinBooster bool) (int, error) {
	const op = "reward.compute_coins"
	caps, ok := c.cfg.CoinCaps[rankLabel]
	if !ok {
		return 0, apperr.Newf(apperr.InvalidArgument, op, "unknown rank %q", rankLabel)
	}
	if place < 1 || place > len(caps) {
		return 0, apperr.Newf(apperr.InvalidArgument, op, "place %d outside 1..%d", place, len(caps))
	}

	mult := c.DifficultyMultiplier(c.rating.AvgExpected(playerIndex, ratings))
	raw := float64(caps[place-1]) * mult * c.booster(coinBooster)

	step := float64(c.cfg.CoinRounding)
	coins := int(math.Floor(raw/step+0.5)) * c.cfg.CoinRounding
	if coins < 0 {
		return 0, nil
	}
	return coins, nil
}

// ComputeExp returns the experience payout. The rank's table position drives
// the base value; an empty or unknown rank falls back to trophies scaled by
// the reference count.
func (c *Calculator) ComputeExp(trophies, place int, rankLabel string, expBooster bool) int {
	var t float64
	if i, ok := c.ranks.Index(rankLabel); ok && rankLabel != "" {
		if c.ranks.Len() > 1 {
			t = float64(i) / float64(c.ranks.Len()-1)
		}
	} else {
		t = math.Max(0, math.Min(1, float64(trophies)/c.cfg.ExpReferenceTrophies))
	}

	base := c.cfg.ExpMin + (c.cfg.ExpMax-c.cfg.ExpMin)*t
	exp := int(math.Floor(base*c.placeMultiplier(place)*c.booster(expBooster) + 0.5))
	if exp < 0 {
		return 0
	}
	return exp
}

// RankRewardTable lists the first-place coin cap of every rank in ladder order.
func (c *Calculator) RankRewardTable() []RankReward {
	out := make([]RankReward, 0, c.ranks.Len())
	for _, label := range c.ranks.Labels() {
		caps, ok := c.cfg.CoinCaps[label]
		if !ok {
			continue
		}
		out = append(out, RankReward{RankName: label, MaxReward: caps[0]})
	}
	return out
}

func (c *Calculator) placeMultiplier(place int) float64 {
	if place < 1 || place > len(c.cfg.ExpPlaceMultipliers) {
		return 1.0
	}
	return c.cfg.ExpPlaceMultipliers[place-1]
}

func (c *Calculator) booster(on bool) float64 {
	if on {
		return c.cfg.BoosterMultiplier
	}
	return 1.0
}
