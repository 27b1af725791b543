// Package rating computes per-race trophy deltas for lobbies of two or more
// racers. Each opponent contributes an Elo-style term weighted by rating
// proximity; the total is damped at high trophy counts and clamped.
package rating

import (
	"math"

	"github.com/okian/raceledger/internal/domain/apperr"
)

// Engine is safe for concurrent use; it holds only immutable configuration.
type Engine struct {
	cfg Config
}

// New builds an Engine after validating cfg.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.KBreakpoints = append([]Breakpoint(nil), cfg.KBreakpoints...)
	return &Engine{cfg: cfg}, nil
}

// NewDefault builds an Engine over DefaultConfig.
func NewDefault() *Engine {
	e, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return e
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config {
	c := e.cfg
	c.KBreakpoints = append([]Breakpoint(nil), e.cfg.KBreakpoints...)
	return c
}

// Expected is the logistic probability that a rated player beats b.
func (e *Engine) Expected(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/e.cfg.D))
}

// BaseK returns the K-factor for a rating.
func (e *Engine) BaseK(r float64) float64 {
	for _, bp := range e.cfg.KBreakpoints {
		if r < bp.Bound {
			return bp.K
		}
	}
	return e.cfg.KBreakpoints[len(e.cfg.KBreakpoints)-1].K
}

// Damping is 1 up to the soft ceiling and decays exponentially past it.
func (e *Engine) Damping(r float64) float64 {
	over := math.Max(0, r-e.cfg.SoftCeilingStart)
	return math.Exp(-e.cfg.SoftCeilingLambda * over)
}

// OpponentWeights returns normalised weights, one per lobby slot. The
// player's own slot is 0. All zero when the lobby has no opponents.
func (e *Engine) OpponentWeights(playerIndex int, ratings []float64) []float64 {
	weights := make([]float64, len(ratings))
	if playerIndex < 0 || playerIndex >= len(ratings) {
		return weights
	}
	own := ratings[playerIndex]
	total := 0.0
	for j, r := range ratings {
		if j == playerIndex {
			continue
		}
		w := math.Exp(-math.Abs(r-own) / e.cfg.Tau)
		if w < e.cfg.WMin {
			w = e.cfg.WMin
		}
		weights[j] = w
		total += w
	}
	if total > 0 {
		for j := range weights {
			weights[j] /= total
		}
	}
	return weights
}

// AvgExpected is the weight-averaged expected score against the lobby, 0.5
// when there is nobody to race.
func (e *Engine) AvgExpected(playerIndex int, ratings []float64) float64 {
	if playerIndex < 0 || playerIndex >= len(ratings) {
		return 0.5
	}
	weights := e.OpponentWeights(playerIndex, ratings)
	own := ratings[playerIndex]
	sum, total := 0.0, 0.0
	for j, w := range weights {
		if j == playerIndex {
			continue
		}
		sum += w * e.Expected(own, ratings[j])
		total += w
	}
	if total <= 0 {
		return 0.5
	}
	return sum / total
}

// ComputeDelta returns the trophy change for the player at playerIndex given
// the full finish order (lobby indices, first place first).
func (e *Engine) ComputeDelta(playerIndex int, finishOrder []int, ratings []float64) (int, error) {
	const op = "rating.compute_delta"
	if err := ValidateLobby(playerIndex, ratings); err != nil {
		return 0, apperr.Wrap(apperr.InvalidArgument, op, err)
	}
	pos, err := positionOf(playerIndex, finishOrder, len(ratings))
	if err != nil {
		return 0, apperr.Wrap(apperr.InvalidArgument, op, err)
	}

	ahead := make(map[int]struct{}, pos)
	for _, j := range finishOrder[:pos] {
		ahead[j] = struct{}{}
	}

	own := ratings[playerIndex]
	kh := e.BaseK(own) * e.Damping(own)
	weights := e.OpponentWeights(playerIndex, ratings)

	total := 0.0
	for j := range ratings {
		if j == playerIndex {
			continue
		}
		score := 1.0
		if _, beaten := ahead[j]; beaten {
			score = 0.0
		}
		c := kh * weights[j] * (score - e.Expected(own, ratings[j]))
		total += clip(c, e.cfg.PerPairClip)
	}

	// half rounds up, matching the client's Math.round
	delta := int(math.Floor(total + 0.5))
	if delta < e.cfg.ClampMin {
		delta = e.cfg.ClampMin
	}
	if delta > e.cfg.ClampMax {
		delta = e.cfg.ClampMax
	}
	return delta, nil
}

// ComputeLastPlaceDelta is ComputeDelta for a finish where the player came
// strictly last and everyone else kept lobby order.
func (e *Engine) ComputeLastPlaceDelta(playerIndex int, ratings []float64) (int, error) {
	if err := ValidateLobby(playerIndex, ratings); err != nil {
		return 0, apperr.Wrap(apperr.InvalidArgument, "rating.compute_last_place_delta", err)
	}
	return e.ComputeDelta(playerIndex, LastPlaceOrder(playerIndex, len(ratings)), ratings)
}

// LastPlaceOrder lists 0..n-1 without playerIndex, then playerIndex.
func LastPlaceOrder(playerIndex, n int) []int {
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i != playerIndex {
			order = append(order, i)
		}
	}
	return append(order, playerIndex)
}

func clip(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
