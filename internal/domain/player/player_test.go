package player

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/raceledger/internal/adapters/repository"
	"github.com/okian/raceledger/internal/domain/apperr"
	"github.com/okian/raceledger/internal/domain/rank"
)

func TestService(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		defer store.Close()
		now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
		svc := NewService(store, rank.Default(), func() time.Time { return now })

		Convey("When a player registers", func() {
			v, created, err := svc.Register(ctx, "p1")

			Convey("Then an Unranked profile exists", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
				So(v.Rank, ShouldEqual, "Unranked")
				So(v.CreatedAt, ShouldEqual, now)

				got, err := svc.Get(ctx, "p1")
				So(err, ShouldBeNil)
				So(got.PlayerID, ShouldEqual, "p1")
			})

			Convey("Then registering again keeps the profile", func() {
				_, created, err := svc.Register(ctx, "p1")
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
			})
		})

		Convey("Then reads of unknown players fail", func() {
			_, err := svc.Get(ctx, "ghost")
			So(apperr.CodeOf(err), ShouldEqual, apperr.NotFound)
			_, err = svc.Get(ctx, "")
			So(apperr.CodeOf(err), ShouldEqual, apperr.InvalidArgument)
			_, _, err = svc.Register(ctx, "")
			So(apperr.CodeOf(err), ShouldEqual, apperr.InvalidArgument)
		})
	})
}
