package reward

import (
	"github.com/okian/raceledger/internal/domain/apperr"
)

// Config holds the economy constants.
type Config struct {
	// CoinCaps lists the maximum coin payout per finishing place, per rank.
	CoinCaps          map[string][]int `koanf:"coin_caps"`
	DifficultyFloor   float64          `koanf:"difficulty_floor"`
	DifficultyCeiling float64          `koanf:"difficulty_ceiling"`
	BoosterMultiplier float64          `koanf:"booster_multiplier"`
	CoinRounding      int              `koanf:"coin_rounding"`
	ExpMin            float64          `koanf:"exp_min"`
	ExpMax            float64          `koanf:"exp_max"`
	// ExpPlaceMultipliers is indexed by place-1; places past the end use 1.0.
	ExpPlaceMultipliers  []float64 `koanf:"exp_place_multipliers"`
	ExpReferenceTrophies float64   `koanf:"exp_reference_trophies"`
}

// DefaultConfig returns the production economy.
func DefaultConfig() Config {
	caps := make(map[string][]int, len(defaultCoinCaps))
	for k, v := range defaultCoinCaps {
		caps[k] = append([]int(nil), v...)
	}
	return Config{
		CoinCaps:             caps,
		DifficultyFloor:      0.85,
		DifficultyCeiling:    1.15,
		BoosterMultiplier:    2.0,
		CoinRounding:         100,
		ExpMin:               100,
		ExpMax:               208,
		ExpPlaceMultipliers:  []float64{1.20, 1.142857, 1.085714, 1.028571, 0.971429, 0.914286, 0.857143, 0.80},
		ExpReferenceTrophies: 7000,
	}
}

// Validate rejects unusable economies.
func (c Config) Validate() error {
	const op = "reward.config"
	switch {
	case len(c.CoinCaps) == 0:
		return apperr.New(apperr.InvalidArgument, op, "coin_caps must not be empty")
	case c.DifficultyFloor <= 0 || c.DifficultyFloor > 1:
		return apperr.New(apperr.InvalidArgument, op, "difficulty_floor must be within (0,1]")
	case c.DifficultyCeiling < 1:
		return apperr.New(apperr.InvalidArgument, op, "difficulty_ceiling must be at least 1")
	case c.BoosterMultiplier < 1:
		return apperr.New(apperr.InvalidArgument, op, "booster_multiplier must be at least 1")
	case c.CoinRounding <= 0:
		return apperr.New(apperr.InvalidArgument, op, "coin_rounding must be positive")
	case c.ExpMax < c.ExpMin || c.ExpMin < 0:
		return apperr.New(apperr.InvalidArgument, op, "exp range is inverted")
	case c.ExpReferenceTrophies <= 0:
		return apperr.New(apperr.InvalidArgument, op, "exp_reference_trophies must be positive")
	}
	for label, caps := range c.CoinCaps {
		if len(caps) == 0 {
			return apperr.Newf(apperr.InvalidArgument, op, "rank %q has no coin caps", label)
		}
		for _, v := range caps {
			if v < 0 {
				return apperr.Newf(apperr.InvalidArgument, op, "rank %q has a negative cap", label)
			}
		}
	}
	return nil
}

var defaultCoinCaps = map[string][]int{
	"Unranked":       {2000, 1500, 1200, 900, 900, 900, 900, 900},
	"Bronze I":       {2200, 1650, 1300, 1000, 1000, 1000, 1000, 1000},
	"Bronze II":      {2500, 1900, 1500, 1100, 1100, 1100, 1100, 1100},
	"Bronze III":     {2800, 2100, 1700, 1300, 1300, 1300, 1300, 1300},
	"Silver I":       {3100, 2300, 1900, 1400, 1400, 1400, 1400, 1400},
	"Silver II":      {3500, 2600, 2100, 1600, 1600, 1600, 1600, 1600},
	"Silver III":     {3900, 2900, 2300, 1800, 1800, 1800, 1800, 1800},
	"Gold I":         {4300, 3200, 2600, 1900, 1900, 1900, 1900, 1900},
	"Gold II":        {4800, 3600, 2900, 2200, 2200, 2200, 2200, 2200},
	"Gold III":       {5400, 4100, 3200, 2400, 2400, 2400, 2400, 2400},
	"Platinum I":     {6000, 4500, 3600, 2700, 2700, 2700, 2700, 2700},
	"Platinum II":    {6700, 5000, 4000, 3000, 3000, 3000, 3000, 3000},
	"Platinum III":   {7500, 5600, 4500, 3400, 3400, 3400, 3400, 3400},
	"Diamond I":      {8400, 6300, 5000, 3800, 3800, 3800, 3800, 3800},
	"Diamond II":     {9400, 7100, 5600, 4200, 4200, 4200, 4200, 4200},
	"Diamond III":    {10500, 7900, 6300, 4700, 4700, 4700, 4700, 4700},
	"Master I":       {11800, 8900, 7100, 5300, 5300, 5300, 5300, 5300},
	"Master II":      {13200, 9900, 7900, 5900, 5900, 5900, 5900, 5900},
	"Master III":     {14800, 11100, 8900, 6600, 6600, 6600, 6600, 6600},
	"Champion I":     {16600, 12400, 10000, 7500, 7500, 7500, 7500, 7500},
	"Champion II":    {18600, 14000, 11200, 8400, 8400, 8400, 8400, 8400},
	"Champion III":   {20900, 15700, 12500, 9400, 9400, 9400, 9400, 9400},
	"Ascendant I":    {23400, 17600, 14000, 10500, 10500, 10500, 10500, 10500},
	"Ascendant II":   {26200, 19700, 15700, 11800, 11800, 11800, 11800, 11800},
	"Ascendant III":  {29400, 22100, 17600, 13200, 13200, 13200, 13200, 13200},
	"Hypersonic I":   {32900, 24700, 19700, 14800, 14800, 14800, 14800, 14800},
	"Hypersonic II":  {36900, 27700, 22100, 16600, 16600, 16600, 16600, 16600},
	"Hypersonic III": {41300, 31000, 24800, 18600, 18600, 18600, 18600, 18600},
}
