// Package store implements the primary table and the five secondary
// indexes described in spec.md §3–§4.1: a single authoritative event-id
// -> Event mapping, plus temporal, process, function, correlation, and
// ast_node multimaps that hold only id references.
//
// Consistency discipline: every write updates primary first, then the
// indexes (spec.md §4.1, §5's "primary-last-seen" rule) so a concurrent
// reader either finds an id via every applicable index plus primary, or
// via none — an index hit with no primary match is treated as absent,
// never as an error; ScanBy also sweeps such entries from its index.
package store

import (
	"sync"
	"sync/atomic"

	errs "github.com/arkilian/tracestore/internal/errors"
	"github.com/arkilian/tracestore/pkg/types"
)

// Store owns the primary table and every secondary index.
type Store struct {
	mu      sync.RWMutex // guards primary
	primary map[string]*types.Event

	temporal    *temporalIndex
	process     *shardedMultimap
	function    *shardedMultimap
	correlation *shardedMultimap
	astNode     *shardedMultimap

	totalEvents   atomic.Int64
	memoryBytes   atomic.Int64
	fullScanCount atomic.Int64
}

// New creates an empty Store with shardCount shards per sharded index.
func New(shardCount int) *Store {
	return &Store{
		primary:     make(map[string]*types.Event),
		temporal:    newTemporalIndex(),
		process:     newShardedMultimap(shardCount),
		function:    newShardedMultimap(shardCount),
		correlation: newShardedMultimap(shardCount),
		astNode:     newShardedMultimap(shardCount),
	}
}

// Insert performs the write algorithm of spec.md §4.1 step (a)-(e). It
// does not enforce capacity — that is the Pruner's and Coordinator's
// job (spec.md §4.1 "Capacity policy").
func (s *Store) Insert(e *types.Event) error {
	s.mu.Lock()
	if _, exists := s.primary[e.EventID]; exists {
		s.mu.Unlock()
		return errs.NewDuplicateID(e.EventID)
	}
	cp := *e
	s.primary[e.EventID] = &cp
	s.mu.Unlock()

	s.indexEvent(&cp)
	s.totalEvents.Add(1)
	s.memoryBytes.Add(estimateSize(&cp))
	return nil
}

// indexEvent appends e's id to every index it participates in. Called
// only after e is already visible in primary.
func (s *Store) indexEvent(e *types.Event) {
	s.temporal.Insert(e.Timestamp, e.EventID)
	s.process.Append(e.PID, e.EventID)
	s.function.Append(e.FunctionKey(), e.EventID)
	if e.CorrelationID != nil {
		s.correlation.Append(*e.CorrelationID, e.EventID)
	}
	if e.ASTNodeID != nil {
		s.astNode.Append(*e.ASTNodeID, e.EventID)
	}
}

// unindexEvent removes e's id from every index it participated in.
// Called after e is removed from primary; readers skip the index
// entries left in between (primary-last-seen).
func (s *Store) unindexEvent(e *types.Event) {
	s.temporal.Remove(e.Timestamp, e.EventID)
	s.process.Remove(e.PID, e.EventID)
	s.function.Remove(e.FunctionKey(), e.EventID)
	if e.CorrelationID != nil {
		s.correlation.Remove(*e.CorrelationID, e.EventID)
	}
	if e.ASTNodeID != nil {
		s.astNode.Remove(*e.ASTNodeID, e.EventID)
	}
}

// InsertResult is the outcome of InsertBatch.
type InsertResult struct {
	InsertedCount int
	InsertedIDs   []string
	SkippedIDs    []string
}

// InsertBatch inserts events in order. Per spec.md §4.1/§9, a duplicate
// id within the batch is skipped (recorded in SkippedIDs) and the batch
// continues; any other error stops the batch, leaving prior
// insertions in place. InsertedIDs lists exactly the ids this call
// added, so a caller that must roll back a partially-applied batch
// (e.g. on a capacity failure) knows precisely what to undo.
func (s *Store) InsertBatch(events []*types.Event) (InsertResult, error) {
	var res InsertResult
	for _, e := range events {
		err := s.Insert(e)
		switch {
		case err == nil:
			res.InsertedCount++
			res.InsertedIDs = append(res.InsertedIDs, e.EventID)
		case errs.GetKind(err) == errs.KindDuplicateID:
			res.SkippedIDs = append(res.SkippedIDs, e.EventID)
		default:
			return res, err
		}
	}
	return res, nil
}

// Lookup returns the event for id, or (nil, false) if absent.
func (s *Store) Lookup(id string) (*types.Event, bool) {
	s.mu.RLock()
	e, ok := s.primary[id]
	s.mu.RUnlock()
	return e, ok
}

// ScanTemporal returns event ids with since <= timestamp <= until in
// ascending order. Dangling ids (present in the index but absent from
// primary, per the primary-last-seen discipline) are silently skipped.
func (s *Store) ScanTemporal(since, until int64) []string {
	return s.filterLive(s.temporal.ScanRange(since, until))
}

// ScanBy returns event ids recorded under key in one of the attribute
// indexes, in append order. index must be one of "process", "function",
// "correlation", "ast_node".
func (s *Store) ScanBy(index, key string) []string {
	var mm *shardedMultimap
	switch index {
	case "process":
		mm = s.process
	case "function":
		mm = s.function
	case "correlation":
		mm = s.correlation
	case "ast_node":
		mm = s.astNode
	default:
		return nil
	}

	ids := mm.Get(key)
	s.mu.RLock()
	live := ids[:0:0]
	var dangling []string
	for _, id := range ids {
		if _, ok := s.primary[id]; ok {
			live = append(live, id)
		} else {
			dangling = append(dangling, id)
		}
	}
	s.mu.RUnlock()

	// Internal-error sweep (spec.md §7): an index entry with no primary
	// match outside the insert/delete critical section is swept so the
	// index does not grow unbounded stale references.
	for _, id := range dangling {
		mm.Remove(key, id)
	}
	return live
}

// FullScan returns every event id currently in primary, in map order
// (the caller imposes the requested ordering afterwards). Increments
// full_scan_count, the stat spec.md §4.2 step 6 requires.
func (s *Store) FullScan() []string {
	s.fullScanCount.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.primary))
	for id := range s.primary {
		ids = append(ids, id)
	}
	return ids
}

// filterLive drops ids that no longer resolve in primary, implementing
// the reader side of the primary-last-seen discipline (spec.md §5/§8 P8).
func (s *Store) filterLive(ids []string) []string {
	if len(ids) == 0 {
		return ids
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := s.primary[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Delete removes id from primary and every index it participated in.
// Per spec.md §4.1's delete algorithm, membership is reconstructed from
// the event fetched from primary before that record is removed.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	e, ok := s.primary[id]
	if !ok {
		s.mu.Unlock()
		return errs.NewNotFound(id)
	}
	delete(s.primary, id)
	s.mu.Unlock()

	s.unindexEvent(e)
	s.totalEvents.Add(-1)
	s.memoryBytes.Add(-estimateSize(e))
	return nil
}

// DeleteBefore removes every event with timestamp < cutoff in one
// logical operation, returning the count removed. The Pruner does not
// call it (it scans and deletes through its own Store interface so it
// can archive first); it always proceeds in ascending timestamp order
// because temporalIndex.ScanRange already yields that order.
func (s *Store) DeleteBefore(cutoff int64) int {
	ids := s.ScanTemporal(minInt64, cutoff-1)
	removed := 0
	for _, id := range ids {
		if err := s.Delete(id); err == nil {
			removed++
		}
	}
	return removed
}

const minInt64 = -1 << 63

// Clear removes every event from every table.
func (s *Store) Clear() {
	s.mu.Lock()
	s.primary = make(map[string]*types.Event)
	s.mu.Unlock()

	s.temporal.Clear()
	s.process.Clear()
	s.function.Clear()
	s.correlation.Clear()
	s.astNode.Clear()
	s.totalEvents.Store(0)
	s.memoryBytes.Store(0)
}

// Len returns the current number of events in primary.
func (s *Store) Len() int64 {
	return s.totalEvents.Load()
}

// Snapshot returns a point-in-time Stats snapshot (spec.md §4.1
// snapshot_stats / §6 stats()).
func (s *Store) Snapshot() types.Stats {
	stats := types.Stats{
		TotalEvents:         s.totalEvents.Load(),
		MemoryBytesEstimate: s.memoryBytes.Load(),
		FullScanCount:       s.fullScanCount.Load(),
		IndexSizes: types.IndexSizes{
			Temporal:    s.temporal.Len(),
			Process:     s.process.Len(),
			Function:    s.function.Len(),
			Correlation: s.correlation.Len(),
			ASTNode:     s.astNode.Len(),
		},
	}
	if ts, ok := s.temporal.Min(); ok {
		stats.OldestTimestamp = &ts
	}
	if ts, ok := s.temporal.Max(); ok {
		stats.NewestTimestamp = &ts
	}
	return stats
}

// estimateSize returns a cheap, advisory estimate of an event's
// in-memory footprint. Precision is explicitly not a requirement
// (spec.md §9 open question) — this exists so memory_bytes_estimate
// tracks gross growth, not an exact byte count.
func estimateSize(e *types.Event) int64 {
	const baseOverhead = 128 // struct header + map/pointer bookkeeping, approximate
	size := int64(baseOverhead)
	size += int64(len(e.EventID) + len(e.PID) + len(e.Module) + len(e.Function) + len(e.EventType))
	if e.CorrelationID != nil {
		size += int64(len(*e.CorrelationID))
	}
	if e.ASTNodeID != nil {
		size += int64(len(*e.ASTNodeID))
	}
	size += estimatePayloadSize(e.Payload)
	return size
}

// estimatePayloadSize walks the payload shallowly; nested structures are
// charged a flat per-key overhead rather than recursed into exactly,
// keeping the estimate O(top-level keys) instead of O(payload depth).
func estimatePayloadSize(payload map[string]any) int64 {
	var size int64
	for k, v := range payload {
		size += int64(len(k)) + 16
		switch val := v.(type) {
		case string:
			size += int64(len(val))
		default:
			size += 32
		}
	}
	return size
}
