package model_test

import (
	"testing"
	"time"

	"github.com/okian/raceledger/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestProfile(t *testing.T) {
	convey.Convey("Given a fresh profile", t, func() {
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		p := model.NewProfile("p1", now)

		convey.Convey("Then it starts empty", func() {
			convey.So(p.TrophyLevel, convey.ShouldEqual, 0)
			convey.So(p.Flag("unrankedToBronzeI"), convey.ShouldEqual, model.FlagNotReached)
			convey.So(p.CreatedAt, convey.ShouldEqual, now)
		})

		convey.Convey("When a clone is mutated", func() {
			p.SetFlag("unrankedToBronzeI", model.FlagClaimable)
			p.AddItem("Common Key", 1)
			c := p.Clone()
			c.SetFlag("unrankedToBronzeI", model.FlagClaimed)
			c.AddItem("Common Key", 2)
			c.TrophyLevel = 900

			convey.Convey("Then the original is untouched", func() {
				convey.So(p.Flag("unrankedToBronzeI"), convey.ShouldEqual, model.FlagClaimable)
				convey.So(p.Inventory["Common Key"], convey.ShouldEqual, 1)
				convey.So(p.TrophyLevel, convey.ShouldEqual, 0)
				convey.So(c.Inventory["Common Key"], convey.ShouldEqual, 3)
			})
		})

		convey.Convey("Then a zero-value profile accepts writes", func() {
			var z model.Profile
			z.SetFlag("k", model.FlagClaimable)
			z.AddItem("Rare Crate", 1)
			convey.So(z.Flag("k"), convey.ShouldEqual, model.FlagClaimable)
			convey.So(z.Inventory["Rare Crate"], convey.ShouldEqual, 1)
			convey.So((*model.Profile)(nil).Clone(), convey.ShouldBeNil)
		})

		convey.Convey("Then flag states print their names", func() {
			convey.So(model.FlagClaimed.String(), convey.ShouldEqual, "claimed")
			convey.So(model.FlagState(7).String(), convey.ShouldEqual, "unknown")
		})
	})
}

func TestRaceSession(t *testing.T) {
	convey.Convey("Given a race session", t, func() {
		orig := 120
		s := &model.RaceSession{
			RaceID:           "r1",
			Ratings:          []float64{100, 200},
			PreDeductedDelta: -8,
			OriginalTrophies: &orig,
		}

		convey.Convey("Then the recorded baseline wins", func() {
			convey.So(s.BaselineTrophies(112), convey.ShouldEqual, 120)
		})

		convey.Convey("When the session predates the baseline field", func() {
			s.OriginalTrophies = nil

			convey.Convey("Then the deduction is added back to the current level", func() {
				convey.So(s.BaselineTrophies(112), convey.ShouldEqual, 120)
			})
		})

		convey.Convey("When the clone is mutated", func() {
			c := s.Clone()
			c.Ratings[0] = 999
			*c.OriginalTrophies = 0

			convey.Convey("Then the source is untouched", func() {
				convey.So(s.Ratings[0], convey.ShouldEqual, 100)
				convey.So(*s.OriginalTrophies, convey.ShouldEqual, 120)
				convey.So(s.Lobby().Size(), convey.ShouldEqual, 2)
			})
		})
	})
}
