package reward_test

import (
	"testing"

	"github.com/okian/raceledger/internal/domain/apperr"
	"github.com/okian/raceledger/internal/domain/rank"
	"github.com/okian/raceledger/internal/domain/rating"
	"github.com/okian/raceledger/internal/domain/reward"
	. "github.com/smartystreets/goconvey/convey"
)

func newCalculator() *reward.Calculator {
	c, err := reward.New(reward.DefaultConfig(), rank.Default(), rating.NewDefault())
	if err != nil {
		panic(err)
	}
	return c
}

func TestComputeCoins(t *testing.T) {
	Convey("Given the default calculator", t, func() {
		c := newCalculator()
		even := []float64{1000, 1000, 1000, 1000}

		Convey("When an Unranked player wins an even lobby", func() {
			coins, err := c.ComputeCoins("Unranked", 1, even, 0, false)
			boosted, berr := c.ComputeCoins("Unranked", 1, even, 0, true)

			Convey("Then the cap is paid and the booster doubles it", func() {
				So(err, ShouldBeNil)
				So(berr, ShouldBeNil)
				So(coins, ShouldEqual, 2000)
				So(boosted, ShouldEqual, 4000)
			})
		})

		Convey("When the player is far weaker than the lobby", func() {
			coins, err := c.ComputeCoins("Unranked", 1, []float64{0, 7000}, 0, false)

			Convey("Then the ceiling multiplier applies", func() {
				So(err, ShouldBeNil)
				So(coins, ShouldEqual, 2300)
			})
		})

		Convey("When the player is far stronger than the lobby", func() {
			coins, err := c.ComputeCoins("Unranked", 1, []float64{7000, 0}, 0, false)

			Convey("Then the floor multiplier applies", func() {
				So(err, ShouldBeNil)
				So(coins, ShouldEqual, 1700)
			})
		})

		Convey("When the raw payout lands on a half step", func() {
			coins, err := c.ComputeCoins("Bronze I", 2, []float64{1000, 1000}, 1, false)

			Convey("Then it rounds up to the next hundred", func() {
				So(err, ShouldBeNil)
				So(coins, ShouldEqual, 1700)
			})
		})

		Convey("When the rank or place is unknown", func() {
			_, errRank := c.ComputeCoins("Wood IV", 1, even, 0, false)
			_, errLow := c.ComputeCoins("Unranked", 0, even, 0, false)
			_, errHigh := c.ComputeCoins("Unranked", 9, even, 0, false)

			Convey("Then each is an invalid argument", func() {
				So(apperr.CodeOf(errRank), ShouldEqual, apperr.InvalidArgument)
				So(apperr.CodeOf(errLow), ShouldEqual, apperr.InvalidArgument)
				So(apperr.CodeOf(errHigh), ShouldEqual, apperr.InvalidArgument)
			})
		})
	})
}

func TestDifficultyMultiplier(t *testing.T) {
	Convey("Given the default calculator", t, func() {
		c := newCalculator()

		So(c.DifficultyMultiplier(0.5), ShouldEqual, 1.0)
		So(c.DifficultyMultiplier(0), ShouldAlmostEqual, 1.15, 1e-12)
		So(c.DifficultyMultiplier(1), ShouldAlmostEqual, 0.85, 1e-12)
		So(c.DifficultyMultiplier(0.25), ShouldAlmostEqual, 1.075, 1e-12)
		So(c.DifficultyMultiplier(0.75), ShouldAlmostEqual, 0.925, 1e-12)
	})
}

func TestComputeExp(t *testing.T) {
	Convey("Given the default calculator", t, func() {
		c := newCalculator()

		Convey("When a rank is supplied", func() {
			Convey("Then the tier position drives the base", func() {
				So(c.ComputeExp(0, 1, "Unranked", false), ShouldEqual, 120)
				So(c.ComputeExp(0, 1, "Gold I", false), ShouldEqual, 154)
				So(c.ComputeExp(0, 8, "Hypersonic III", false), ShouldEqual, 166)
				So(c.ComputeExp(0, 8, "Hypersonic III", true), ShouldEqual, 333)
			})

			Convey("Then places past the table use a neutral multiplier", func() {
				So(c.ComputeExp(0, 12, "Hypersonic III", false), ShouldEqual, 208)
			})
		})

		Convey("When no rank is supplied", func() {
			Convey("Then trophies drive the base and are clamped", func() {
				So(c.ComputeExp(3500, 4, "", false), ShouldEqual, 158)
				So(c.ComputeExp(99999, 1, "", false), ShouldEqual, 250)
				So(c.ComputeExp(-10, 1, "", false), ShouldEqual, 120)
			})
		})

		Convey("When the rank is unknown", func() {
			Convey("Then it falls back to trophies", func() {
				So(c.ComputeExp(3500, 4, "Wood IV", false), ShouldEqual, 158)
			})
		})
	})
}

func TestRankRewardTable(t *testing.T) {
	Convey("Given the default calculator", t, func() {
		table := newCalculator().RankRewardTable()

		Convey("Then every rank lists its first-place cap in ladder order", func() {
			So(len(table), ShouldEqual, 28)
			So(table[0], ShouldResemble, reward.RankReward{RankName: "Unranked", MaxReward: 2000})
			So(table[7], ShouldResemble, reward.RankReward{RankName: "Gold I", MaxReward: 4300})
			So(table[27], ShouldResemble, reward.RankReward{RankName: "Hypersonic III", MaxReward: 41300})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given config mutations", t, func() {
		mutate := []struct {
			name string
			fn   func(*reward.Config)
		}{
			{"no caps", func(c *reward.Config) { c.CoinCaps = nil }},
			{"empty cap list", func(c *reward.Config) { c.CoinCaps["Unranked"] = nil }},
			{"negative cap", func(c *reward.Config) { c.CoinCaps["Unranked"] = []int{-1} }},
			{"floor above one", func(c *reward.Config) { c.DifficultyFloor = 1.2 }},
			{"ceiling below one", func(c *reward.Config) { c.DifficultyCeiling = 0.9 }},
			{"booster below one", func(c *reward.Config) { c.BoosterMultiplier = 0.5 }},
			{"zero rounding", func(c *reward.Config) { c.CoinRounding = 0 }},
			{"inverted exp", func(c *reward.Config) { c.ExpMin = 300 }},
			{"zero reference", func(c *reward.Config) { c.ExpReferenceTrophies = 0 }},
		}

		for _, m := range mutate {
			Convey("When the config has "+m.name, func() {
				cfg := reward.DefaultConfig()
				m.fn(&cfg)
				_, err := reward.New(cfg, rank.Default(), rating.NewDefault())
				So(apperr.CodeOf(err), ShouldEqual, apperr.InvalidArgument)
			})
		}

		Convey("When collaborators are missing", func() {
			_, err := reward.New(reward.DefaultConfig(), nil, nil)
			So(apperr.CodeOf(err), ShouldEqual, apperr.InvalidArgument)
		})
	})
}
