// Package metrics exposes the engine's Prometheus instrumentation:
// promauto-registered package-level collectors plus small Record* helpers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_records_ingested_total",
			Help: "Total number of records ingested, by kind.",
		},
		[]string{"kind"},
	)

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_ingest_errors_total",
			Help: "Total number of ingress records that failed to dispatch, by kind.",
		},
		[]string{"kind"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_query_duration_seconds",
			Help:    "Duration of engine queries, by entity kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	QueryResultCount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_query_result_count",
			Help:    "Number of records returned per query, by entity kind.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"entity"},
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_active_subscriptions",
			Help: "Current number of live event subscriptions.",
		},
	)

	IndexedSpans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_indexed_spans",
			Help: "Current number of spans held in the in-memory index.",
		},
	)

	IndexedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_indexed_events",
			Help: "Current number of events held in the in-memory index.",
		},
	)

	IngressConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_ingress_connections",
			Help: "Current number of open ingress connections.",
		},
	)
)

// RecordQuery records the duration and result size of a completed query.
func RecordQuery(entity string, duration time.Duration, resultCount int) {
	QueryDuration.WithLabelValues(entity).Observe(duration.Seconds())
	QueryResultCount.WithLabelValues(entity).Observe(float64(resultCount))
}
