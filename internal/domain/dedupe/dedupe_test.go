package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/raceledger/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When a race id is recorded", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(ctx, "race-1")

			Convey("Then it is new the first time", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then a second attempt sees it", func() {
				So(d.SeenAndRecord(ctx, "race-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And it is released", func() {
				d.Unrecord(ctx, "race-1")

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "race-1"), ShouldBeFalse)
				})
			})

			Convey("Then releasing an unknown id is a no-op", func() {
				d.Unrecord(ctx, "race-404")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When bounded at three ids", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"race-1", "race-2", "race-3"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}
			So(d.SeenAndRecord(ctx, "race-4"), ShouldBeFalse)

			Convey("Then the oldest is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "race-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "race-3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "race-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "race-1"), ShouldBeFalse)
			})

			Convey("Then releasing from the middle keeps order intact", func() {
				d.Unrecord(ctx, "race-3")
				So(d.SeenAndRecord(ctx, "race-5"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "race-6"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "race-2"), ShouldBeFalse)
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("race-%d", i))
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(ctx, "race-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given many goroutines racing on one id", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		var winners atomic.Int32
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(context.Background(), "race-1") {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one records it", func() {
			So(winners.Load(), ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})

	Convey("Given concurrent record and release", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		var wg sync.WaitGroup
		for g := 0; g < 10; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					id := fmt.Sprintf("race-%d-%d", g, j)
					d.SeenAndRecord(context.Background(), id)
					d.Unrecord(context.Background(), id)
				}
			}(g)
		}
		wg.Wait()

		Convey("Then the guard ends empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})
	})
}
