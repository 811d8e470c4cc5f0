// Package observability exposes the event store's internal counters
// as Prometheus metrics, grounded on V4T54L-watch-tower's
// adapter/metrics package. Registration happens against a private
// registry (rather than the global default) so a Coordinator can be
// constructed more than once in a test process without a duplicate
// registration panic.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arkilian/tracestore/pkg/types"
)

// StoreMetrics mirrors the fields of types.Stats as Prometheus gauges
// and counters, plus request-path counters the Stats snapshot alone
// cannot carry (insert/query/prune outcomes).
type StoreMetrics struct {
	Registry *prometheus.Registry

	TotalEvents   prometheus.Gauge
	MemoryBytes   prometheus.Gauge
	OldestEventMs prometheus.Gauge
	NewestEventMs prometheus.Gauge
	FullScanTotal prometheus.Counter

	IndexSize *prometheus.GaugeVec

	InsertsTotal *prometheus.CounterVec
	QueriesTotal *prometheus.CounterVec
	PrunedTotal  *prometheus.CounterVec
}

// NewStoreMetrics creates and registers a fresh set of metrics under
// namespace.
func NewStoreMetrics(namespace string) *StoreMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &StoreMetrics{
		Registry: reg,
		TotalEvents: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "total_events",
			Help:      "Current number of events held in the store.",
		}),
		MemoryBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "memory_bytes_estimate",
			Help:      "Advisory estimate of the store's in-memory footprint in bytes.",
		}),
		OldestEventMs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "oldest_event_timestamp_ms",
			Help:      "Timestamp of the oldest event currently held, in milliseconds since epoch.",
		}),
		NewestEventMs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "newest_event_timestamp_ms",
			Help:      "Timestamp of the newest event currently held, in milliseconds since epoch.",
		}),
		FullScanTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "full_scan_total",
			Help:      "Total number of queries that fell through to a full primary scan.",
		}),
		IndexSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "index_entries",
			Help:      "Number of entries currently held per secondary index.",
		}, []string{"index"}),
		InsertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "inserts_total",
			Help:      "Total number of insert attempts by outcome.",
		}, []string{"outcome"}), // outcome: accepted, duplicate, capacity_exceeded, error
		QueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "queries_total",
			Help:      "Total number of queries by chosen driver.",
		}, []string{"driver"}),
		PrunedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "pruned_events_total",
			Help:      "Total number of events pruned by trigger.",
		}, []string{"trigger"}), // trigger: explicit (Coordinator.Cleanup); periodic and capacity prunes are not counted
	}
}

// Observe refreshes the gauge-shaped metrics from a Stats snapshot.
// Counter-shaped metrics (inserts/queries/pruned) are updated directly
// by their callers as each operation completes.
func (m *StoreMetrics) Observe(stats types.Stats) {
	m.TotalEvents.Set(float64(stats.TotalEvents))
	m.MemoryBytes.Set(float64(stats.MemoryBytesEstimate))
	m.FullScanTotal.Add(0) // ensure the series exists even before first full scan

	if stats.OldestTimestamp != nil {
		m.OldestEventMs.Set(float64(*stats.OldestTimestamp))
	}
	if stats.NewestTimestamp != nil {
		m.NewestEventMs.Set(float64(*stats.NewestTimestamp))
	}

	m.IndexSize.WithLabelValues("temporal").Set(float64(stats.IndexSizes.Temporal))
	m.IndexSize.WithLabelValues("process").Set(float64(stats.IndexSizes.Process))
	m.IndexSize.WithLabelValues("function").Set(float64(stats.IndexSizes.Function))
	m.IndexSize.WithLabelValues("correlation").Set(float64(stats.IndexSizes.Correlation))
	m.IndexSize.WithLabelValues("ast_node").Set(float64(stats.IndexSizes.ASTNode))
}
