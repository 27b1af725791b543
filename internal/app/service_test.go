package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/raceledger/internal/app"
	"github.com/okian/raceledger/internal/config"
	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/internal/domain/settlement"
)

type recordingSink struct {
	mu  sync.Mutex
	got []model.NotificationKind
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Deliver(_ context.Context, n model.Notification) error { //nolint:gocritic // hugeParam
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n.Kind)
	return nil
}

func (r *recordingSink) kinds() []model.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.NotificationKind(nil), r.got...)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.New(context.Background())
	cfg.NotifyWorkers = 2
	cfg.AuditLogPath = filepath.Join(t.TempDir(), "audit")
	return cfg
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service that has not started", t, func() {
		svc := service.New(testConfig(t))

		Convey("Then it reports itself stopped", func() {
			_, err := svc.Dependencies()
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.Stop(context.Background()), ShouldBeNil)
		})

		Convey("When it starts", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then every dependency is wired", func() {
				deps, err := svc.Dependencies()
				So(err, ShouldBeNil)
				So(deps.Races, ShouldNotBeNil)
				So(deps.Rewards, ShouldNotBeNil)
				So(deps.Profiles, ShouldNotBeNil)
				So(deps.Notifier, ShouldNotBeNil)
				So(deps.Auth, ShouldNotBeNil)

				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["store_driver"], ShouldEqual, "memory")
				So(stats["notify_workers"], ShouldEqual, 2)
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given an invalid configuration", t, func() {
		cfg := testConfig(t)
		cfg.StoreDriver = "mongo"
		svc := service.New(cfg)

		Convey("Then Start refuses it", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestServiceSettlesAndNotifies(t *testing.T) {
	Convey("Given a started service with a recording sink", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		sink := &recordingSink{}
		now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
		svc := service.New(cfg, service.WithSinks(sink), service.WithClock(func() time.Time { return now }))
		So(svc.Start(ctx), ShouldBeNil)

		_, created, err := svc.Players().Register(ctx, "p1")
		So(err, ShouldBeNil)
		So(created, ShouldBeTrue)

		Convey("When a race runs start to finish and the reward is claimed", func() {
			_, err := svc.Races().Start(ctx, settlement.StartRequest{
				PlayerID: "p1", RaceID: "r1", Lobby: model.NewLobby([]float64{0, 0}, 0),
			})
			So(err, ShouldBeNil)
			res, err := svc.Races().Finish(ctx, settlement.FinishRequest{
				PlayerID: "p1", RaceID: "r1", FinishOrder: []int{0, 1}, Place: 1,
			})
			So(err, ShouldBeNil)
			So(res.TrophiesActual, ShouldBeGreaterThan, 0)
			So(svc.GetStats()["races"], ShouldEqual, 1)

			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then every notification was delivered before shutdown finished", func() {
				kinds := sink.kinds()
				So(kinds, ShouldHaveLength, 2)
				So(kinds, ShouldContain, model.KindRaceStarted)
				So(kinds, ShouldContain, model.KindRaceSettled)
			})

			Convey("Then the audit log has one line per notification", func() {
				b, err := os.ReadFile(filepath.Join(cfg.AuditLogPath, "2026-10-14", "notifications.jsonl"))
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"kind":"RaceSettled"`)
			})
		})
	})
}
