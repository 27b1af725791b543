package rating

import (
	"math"

	"github.com/okian/raceledger/internal/domain/apperr"
)

// Breakpoint maps trophies strictly below Bound to base factor K.
type Breakpoint struct {
	Bound float64 `koanf:"bound"`
	K     float64 `koanf:"k"`
}

// Config holds the tuning constants of the engine.
type Config struct {
	// D is the rating spread of the logistic expected-score curve.
	D float64 `koanf:"d"`
	// Tau is the distance-decay scale for opponent weights.
	Tau float64 `koanf:"tau"`
	// WMin floors every opponent's raw weight.
	WMin float64 `koanf:"w_min"`
	// PerPairClip bounds the magnitude of any single opponent's contribution.
	PerPairClip float64 `koanf:"per_pair_clip"`
	ClampMin    int     `koanf:"clamp_min"`
	ClampMax    int     `koanf:"clamp_max"`
	// KBreakpoints is scanned in order; the first Bound above the player's
	// rating wins, the last entry's K applies past the table.
	KBreakpoints      []Breakpoint `koanf:"k_breakpoints"`
	SoftCeilingStart  float64      `koanf:"soft_ceiling_start"`
	SoftCeilingLambda float64      `koanf:"soft_ceiling_lambda"`
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		D:           700,
		Tau:         600,
		WMin:        0.20,
		PerPairClip: 8,
		ClampMin:    -40,
		ClampMax:    40,
		KBreakpoints: []Breakpoint{
			{Bound: 2000, K: 48},
			{Bound: 4000, K: 40},
			{Bound: 6000, K: 32},
			{Bound: 7000, K: 24},
			{Bound: 8000, K: 12},
			{Bound: 9000, K: 10},
			{Bound: 10000, K: 8},
			{Bound: math.Inf(1), K: 6},
		},
		SoftCeilingStart:  7000,
		SoftCeilingLambda: 1.0 / 2000.0,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	const op = "rating.config"
	switch {
	case !(c.D > 0):
		return apperr.New(apperr.InvalidArgument, op, "d must be positive")
	case !(c.Tau > 0):
		return apperr.New(apperr.InvalidArgument, op, "tau must be positive")
	case c.WMin < 0 || c.WMin > 1:
		return apperr.New(apperr.InvalidArgument, op, "w_min must be within [0,1]")
	case c.PerPairClip <= 0:
		return apperr.New(apperr.InvalidArgument, op, "per_pair_clip must be positive")
	case c.ClampMin > 0 || c.ClampMax < 0:
		return apperr.New(apperr.InvalidArgument, op, "clamp range must contain 0")
	case len(c.KBreakpoints) == 0:
		return apperr.New(apperr.InvalidArgument, op, "k_breakpoints must not be empty")
	case c.SoftCeilingLambda < 0:
		return apperr.New(apperr.InvalidArgument, op, "soft_ceiling_lambda must not be negative")
	}
	for i := 1; i < len(c.KBreakpoints); i++ {
		if c.KBreakpoints[i].Bound <= c.KBreakpoints[i-1].Bound {
			return apperr.Newf(apperr.InvalidArgument, op, "k breakpoint %d bound not increasing", i)
		}
	}
	return nil
}
