package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a private registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When a manager registers with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			m.racesSettled.Inc()

			Convey("Then its metrics carry the namespace and labels", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_races_settled_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})

			Convey("Then registering twice on the same registry panics", func() {
				So(func() { NewManager(WithNamespace("test"), WithSubsystem("unit"), WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When settlement metrics are recorded", func() {
			before := testutil.ToFloat64(globalManager.racesStarted.WithLabelValues("true"))
			RecordRaceStarted(true)
			settled := testutil.ToFloat64(globalManager.racesSettled)
			RecordRaceSettled(8, 2000)
			unlocked := testutil.ToFloat64(globalManager.rewardsUnlocked)
			RecordPromotion(2)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.racesStarted.WithLabelValues("true")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.racesSettled), ShouldEqual, settled+1)
				So(testutil.ToFloat64(globalManager.rewardsUnlocked), ShouldEqual, unlocked+2)
			})
		})

		Convey("When gauges are set", func() {
			UpdateQueueSize(7)
			UpdateStoreRecords("profiles", 3)
			UpdateWebsocketClients(2)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.storeRecords.WithLabelValues("profiles")), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.websocketClients), ShouldEqual, 2)
			})
		})

		Convey("Then every recorder accepts calls", func() {
			So(func() {
				RecordDemotion()
				RecordSettlementError("finish", "AlreadyExists")
				RecordSettlementLatency("finish", 1.5)
				RecordRewardClaim("granted")
				RecordNotificationDelivered("websocket")
				RecordNotificationDropped("queue_full")
				RecordStoreLatency("memory", "update", 0.2)
				RecordStoreConflict("redis")
				RecordHTTPRequest("/races/finish", "POST", "200")
				RecordHTTPRequestDuration("/races/finish", "POST", "200", 3)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.07)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.1)
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(1)
				UpdateWorkerIdleCount(3)
				RecordWorkerProcessingLatency(2)
				RecordWorkerError()
				RecordErrorByComponent("repository", "bolt_write")
				RecordErrorByEndpoint("/rewards/claim", "POST", "AlreadyExists")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("Then the registry exposes the raceledger namespace", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			So(strings.Join(names, ","), ShouldContainSubstring, "raceledger_engine_races_settled_total")
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.demotions)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					RecordDemotion()
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(testutil.ToFloat64(globalManager.demotions), ShouldEqual, before+1000)
		})
	})
}
