// Package observability provides query statistics tracking for
// operator visibility into query shape, in addition to the Prometheus
// metrics in metrics.go.
package observability

import (
	"sort"
	"sync"
	"time"
)

// FieldStats tracks how often each predicate field appears across
// queries and which driver the planner chose to serve it, so an
// operator can tell whether the store's fixed secondary indexes match
// the traffic actually hitting it. Unlike a query planner over
// arbitrary columns, tracestore's index set is fixed at compile time
// (spec.md §5); FieldStats exists to inform that decision over time,
// not to drive automatic index creation.
type FieldStats struct {
	mu        sync.RWMutex
	fieldFreq map[string]*FieldCount
	window    time.Duration
}

// FieldCount holds statistics for one predicate field.
type FieldCount struct {
	Field     string
	Frequency int64
	LastSeen  time.Time
	Drivers   map[string]int // driver name -> count
}

// NewFieldStats creates a new field statistics tracker.
// window: how long an entry survives without being seen again before
// Prune removes it (e.g. 1 hour).
func NewFieldStats(window time.Duration) *FieldStats {
	return &FieldStats{
		fieldFreq: make(map[string]*FieldCount),
		window:    window,
	}
}

// RecordQuery records one query's active predicate fields against the
// driver the planner selected to serve it.
func (q *FieldStats) RecordQuery(fields []string, driver string) {
	if len(fields) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for _, field := range fields {
		stats, exists := q.fieldFreq[field]
		if !exists {
			stats = &FieldCount{
				Field:   field,
				Drivers: make(map[string]int),
			}
			q.fieldFreq[field] = stats
		}
		stats.Frequency++
		stats.LastSeen = now
		stats.Drivers[driver]++
	}
}

// GetTopFields returns the top N fields by frequency, descending.
func (q *FieldStats) GetTopFields(n int) []FieldCount {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.fieldFreq) == 0 {
		return []FieldCount{}
	}

	stats := make([]FieldCount, 0, len(q.fieldFreq))
	for _, s := range q.fieldFreq {
		statsCopy := FieldCount{
			Field:     s.Field,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Drivers:   make(map[string]int, len(s.Drivers)),
		}
		for driver, count := range s.Drivers {
			statsCopy.Drivers[driver] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Frequency > stats[j].Frequency
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes fields not seen within window. Callers periodically
// invoke this (e.g. alongside the pruner's cleanup tick) to keep
// FieldStats from growing unbounded under a changing query mix.
func (q *FieldStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := time.Now().Add(-q.window)
	for field, stats := range q.fieldFreq {
		if stats.LastSeen.Before(threshold) {
			delete(q.fieldFreq, field)
		}
	}
}
