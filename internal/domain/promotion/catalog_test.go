package promotion

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/raceledger/internal/domain/rank"
)

func TestTransitionKey(t *testing.T) {
	Convey("Keys keep the client's camelCase form", t, func() {
		So(TransitionKey("Unranked", "Bronze I"), ShouldEqual, "unrankedToBronzeI")
		So(TransitionKey("Bronze III", "Silver I"), ShouldEqual, "bronzeIIIToSilverI")
		So(TransitionKey("Hypersonic II", "Hypersonic III"), ShouldEqual, "hypersonicIIToHypersonicIII")
		So(TransitionKey("", "Bronze I"), ShouldEqual, "ToBronzeI")
	})
}

func TestDefaultCatalog(t *testing.T) {
	Convey("Given the default catalog", t, func() {
		c := DefaultCatalog()

		Convey("Then every adjacent rank-up has a reward", func() {
			So(len(c.Rewards()), ShouldEqual, rank.Default().Len()-1)
		})

		Convey("Then the first promotion pays gems and a key", func() {
			r, ok := c.ByKey("unrankedToBronzeI")
			So(ok, ShouldBeTrue)
			So(r.Gems, ShouldEqual, 100)
			So(r.Item.Name(), ShouldEqual, "Common Key")
			So(r.From, ShouldEqual, "Unranked")
			So(r.To, ShouldEqual, "Bronze I")
		})

		Convey("Then crate-only steps carry no gems", func() {
			r, ok := c.ByKey("bronzeIToBronzeII")
			So(ok, ShouldBeTrue)
			So(r.Gems, ShouldEqual, 0)
			So(r.Item.Name(), ShouldEqual, "Common Crate")
		})

		Convey("When ranks are crossed", func() {
			Convey("Then a single step yields one reward", func() {
				got := c.Crossed("Unranked", "Bronze I")
				So(len(got), ShouldEqual, 1)
				So(got[0].Key, ShouldEqual, "unrankedToBronzeI")
			})

			Convey("Then a jump yields every step, lowest first", func() {
				got := c.Crossed("Unranked", "Bronze III")
				So(len(got), ShouldEqual, 3)
				So(got[0].Key, ShouldEqual, "unrankedToBronzeI")
				So(got[2].Key, ShouldEqual, "bronzeIIToBronzeIII")
			})

			Convey("Then demotions, no-ops and unknown labels yield nothing", func() {
				So(c.Crossed("Silver I", "Bronze II"), ShouldBeEmpty)
				So(c.Crossed("Silver I", "Silver I"), ShouldBeEmpty)
				So(c.Crossed("Nope", "Silver I"), ShouldBeEmpty)
			})
		})

		Convey("Then unknown keys are absent", func() {
			_, ok := c.ByKey("bronzeIToUnranked")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestNewCatalog(t *testing.T) {
	Convey("Given a small table", t, func() {
		table := rank.MustNewTable([]rank.Tier{
			{MinTrophies: 0, Label: "Rookie"},
			{MinTrophies: 100, Label: "Pro"},
			{MinTrophies: 200, Label: "Ace"},
		})

		Convey("Then a short grant list leaves the top step empty", func() {
			c, err := NewCatalog(table, []Grant{{Gems: 5}})
			So(err, ShouldBeNil)
			So(len(c.Rewards()), ShouldEqual, 1)
			So(c.Crossed("Rookie", "Ace"), ShouldHaveLength, 1)
		})

		Convey("Then too many grants are rejected", func() {
			_, err := NewCatalog(table, []Grant{{}, {}, {}})
			So(err, ShouldNotBeNil)
		})

		Convey("Then a nil table is rejected", func() {
			_, err := NewCatalog(nil, nil)
			So(err, ShouldNotBeNil)
		})
	})
}
