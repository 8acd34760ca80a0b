package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with the service namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "scorestat")
				So(manager.latencyBuckets, ShouldNotBeEmpty)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithLatencyBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.latencyBuckets, ShouldResemble, []float64{1, 10})
			})

			Convey("Then collectors should be registered under the custom names", func() {
				manager.importRows.WithLabelValues(OutcomeCreated).Add(2)
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_import_rows_total"], ShouldBeTrue)
			})
		})

		Convey("When empty options are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithLatencyBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "scorestat")
				So(len(manager.latencyBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestRecordHelpers(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording import rows", func() {
			before := testutil.ToFloat64(globalManager.importRows.WithLabelValues(OutcomeUpdated))
			RecordImportRows(OutcomeUpdated, 3)
			RecordImportRows(OutcomeUpdated, 0)
			after := testutil.ToFloat64(globalManager.importRows.WithLabelValues(OutcomeUpdated))

			Convey("Then the counter should grow by the positive amount only", func() {
				So(after-before, ShouldEqual, 3)
			})
		})

		Convey("When recording cache lookups", func() {
			before := testutil.ToFloat64(globalManager.cacheLookups.WithLabelValues(CacheHit))
			RecordCacheLookup(CacheHit)
			after := testutil.ToFloat64(globalManager.cacheLookups.WithLabelValues(CacheHit))

			Convey("Then the hit counter should be incremented", func() {
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When updating the record gauge", func() {
			UpdateRepositoryRecords(42)

			Convey("Then it should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.repositoryRecords), ShouldEqual, 42)
			})
		})

		Convey("When calling every remaining helper", func() {
			So(func() {
				RecordFlush(FlushCommitted, 1.5)
				RecordFlush(FlushFailed, 0.2)
				RecordImportRun("write")
				RecordRankingComputation("row_wise")
				RecordAggregationLatency("report", "set_based", 3)
				RecordRepositoryLatency("sqlite", "bulk_upsert", 4)
				RecordHTTPRequest("/api/score-report/", "GET", "200")
				RecordHTTPRequestDuration("/api/score-report/", "GET", "200", 12)
			}, ShouldNotPanic)
		})

		Convey("When gathering the service registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then it should expose the service metrics", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}
