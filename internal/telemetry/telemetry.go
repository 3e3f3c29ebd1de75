// Package telemetry registers the Prometheus instrumentation for the
// trendwatch daemon, exposed on the HTTP API's /metrics endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_snapshots_ingested_total",
			Help: "Total number of snapshots accepted into the window cache",
		},
	)

	SnapshotsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_snapshots_evicted_total",
			Help: "Total number of snapshots evicted past the retention horizon",
		},
	)

	DurableWritesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_durable_writes_dropped_total",
			Help: "Durable snapshot writes dropped because the writer queue was full",
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendwatch_store_errors_total",
			Help: "Durable store failures by operation; all are recoverable",
		},
		[]string{"op"},
	)

	QueriesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendwatch_queries_total",
			Help: "History queries served, by kind (history, average, trend, summary)",
		},
		[]string{"kind"},
	)

	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendwatch_fetch_attempts_total",
			Help: "Upstream snapshot fetches, by outcome (ok, error)",
		},
		[]string{"outcome"},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trendwatch_cache_snapshots",
			Help: "Snapshots currently held in the window cache",
		},
	)
)
