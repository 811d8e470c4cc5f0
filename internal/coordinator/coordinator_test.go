package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/arkilian/tracestore/internal/config"
	errs "github.com/arkilian/tracestore/internal/errors"
	"github.com/arkilian/tracestore/pkg/types"
)

func strp(s string) *string { return &s }

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	cfg := config.Default()
	cfg.MetricsNamespace = "tracestore_test_" + t.Name()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c
}

// scenarioEvents mirrors spec.md §8's end-to-end scenario fixtures.
func scenarioEvents() (a, b, c *types.Event) {
	a = &types.Event{EventID: "a", Timestamp: 100, PID: "P1", Module: "M", Function: "f", Arity: 1, CorrelationID: strp("c1"), ASTNodeID: strp("n1")}
	b = &types.Event{EventID: "b", Timestamp: 200, PID: "P2", Module: "M", Function: "f", Arity: 1, CorrelationID: strp("c1"), ASTNodeID: strp("n2")}
	c = &types.Event{EventID: "c", Timestamp: 300, PID: "P1", Module: "M", Function: "g", Arity: 0, ASTNodeID: strp("n1")}
	return
}

func TestScenario1_QueryByPIDAscending(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	a, b, cc := scenarioEvents()
	for _, e := range []*types.Event{a, b, cc} {
		if err := c.Store(ctx, e); err != nil {
			t.Fatalf("store %s: %v", e.EventID, err)
		}
	}

	got, err := c.Query(ctx, types.Filter{PID: strp("P1"), Order: types.OrderAsc})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "a" || got[1].EventID != "c" {
		t.Fatalf("expected [a c], got %v", ids(got))
	}
}

func TestScenario2_QueryByASTNodeDescending(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	a, b, cc := scenarioEvents()
	for _, e := range []*types.Event{a, b, cc} {
		if err := c.Store(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := c.Query(ctx, types.Filter{ASTNodeID: strp("n1"), Order: types.OrderDesc})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "c" || got[1].EventID != "a" {
		t.Fatalf("expected [c a], got %v", ids(got))
	}
}

func TestScenario3_QueryByCorrelationInsertionOrder(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	a, b, _ := scenarioEvents()
	for _, e := range []*types.Event{a, b} {
		if err := c.Store(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := c.Query(ctx, types.Filter{CorrelationID: strp("c1")})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "a" || got[1].EventID != "b" {
		t.Fatalf("expected [a b], got %v", ids(got))
	}
}

func TestScenario4_QueryByTemporalRange(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	a, b, cc := scenarioEvents()
	for _, e := range []*types.Event{a, b, cc} {
		if err := c.Store(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := c.Query(ctx, types.Filter{SinceTimestamp: i64p(150), UntilTimestamp: i64p(250)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "b" {
		t.Fatalf("expected [b], got %v", ids(got))
	}
}

func TestScenario5_DuplicateLeavesStateUnchanged(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	a, _, _ := scenarioEvents()
	if err := c.Store(ctx, a); err != nil {
		t.Fatal(err)
	}
	before := c.Stats().TotalEvents

	err := c.Store(ctx, a)
	if errs.GetKind(err) != errs.KindDuplicateID {
		t.Fatalf("expected DuplicateId, got %v", err)
	}
	if after := c.Stats().TotalEvents; after != before {
		t.Fatalf("state changed after failed duplicate insert: before=%d after=%d", before, after)
	}
}

func TestScenario6_CapacityEvictionKeepsCountAtOrBelowMax(t *testing.T) {
	cfg := config.Default()
	cfg.MaxEvents = 2
	cfg.LowWaterRatio = 0.5
	cfg.MetricsNamespace = "tracestore_test_scenario6"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	ctx := context.Background()
	a, b, cc := scenarioEvents()

	for _, e := range []*types.Event{a, b, cc} {
		if err := c.Store(ctx, e); err != nil {
			t.Fatalf("store %s: %v", e.EventID, err)
		}
	}

	stats := c.Stats()
	if stats.TotalEvents > 2 {
		t.Fatalf("expected total_events <= 2 after capacity eviction, got %d", stats.TotalEvents)
	}
	if _, err := c.Get("a"); errs.GetKind(err) != errs.KindNotFound {
		t.Fatalf("expected the oldest event (a) to have been evicted, got err=%v", err)
	}
	got, err := c.Query(ctx, types.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	found := false
	for _, e := range got {
		if e.EventID == "c" {
			found = true
		}
		if e.EventID == "a" {
			t.Fatal("evicted event a must not appear in query results")
		}
	}
	if !found {
		t.Fatal("expected the newest event (c) to survive capacity eviction")
	}
}

func TestStoreWithZeroMaxEventsAlwaysFailsCapacity(t *testing.T) {
	cfg := config.Default()
	cfg.MaxEvents = 0
	cfg.MetricsNamespace = "tracestore_test_zero_max_events"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	ctx := context.Background()
	a, _, _ := scenarioEvents()

	err = c.Store(ctx, a)
	if errs.GetKind(err) != errs.KindCapacityExceeded {
		t.Fatalf("expected CapacityExceeded, got %v", err)
	}
	if _, err := c.Get("a"); errs.GetKind(err) != errs.KindNotFound {
		t.Fatalf("expected the rolled-back event to be absent, got err=%v", err)
	}
	if stats := c.Stats(); stats.TotalEvents != 0 {
		t.Fatalf("expected an empty store after the rollback, got total_events=%d", stats.TotalEvents)
	}
}

func TestStoreBatchWithZeroMaxEventsRollsBackWholeBatch(t *testing.T) {
	cfg := config.Default()
	cfg.MaxEvents = 0
	cfg.MetricsNamespace = "tracestore_test_zero_max_events_batch"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	ctx := context.Background()
	a, b, _ := scenarioEvents()

	res, err := c.StoreBatch(ctx, []*types.Event{a, b})
	if errs.GetKind(err) != errs.KindCapacityExceeded {
		t.Fatalf("expected CapacityExceeded, got %v", err)
	}
	if res.InsertedCount != 0 {
		t.Fatalf("expected a rolled-back batch to report 0 inserted, got %d", res.InsertedCount)
	}
	if stats := c.Stats(); stats.TotalEvents != 0 {
		t.Fatalf("expected an empty store after the rollback, got total_events=%d", stats.TotalEvents)
	}
}

func TestStoreBatchSkipAndContinue(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	a, b, _ := scenarioEvents()
	if err := c.Store(ctx, a); err != nil {
		t.Fatal(err)
	}

	res, err := c.StoreBatch(ctx, []*types.Event{a, b})
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if res.InsertedCount != 1 || len(res.SkippedIDs) != 1 || res.SkippedIDs[0] != "a" {
		t.Fatalf("unexpected batch result: %+v", res)
	}
}

func TestCleanupAndClear(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	a, b, cc := scenarioEvents()
	for _, e := range []*types.Event{a, b, cc} {
		if err := c.Store(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := c.Cleanup(ctx, 250)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	c.Clear()
	if c.Stats().TotalEvents != 0 {
		t.Fatalf("expected 0 events after clear, got %d", c.Stats().TotalEvents)
	}
}

func TestTopQueriedFieldsTracksDriverPerField(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	a, b, cc := scenarioEvents()
	for _, e := range []*types.Event{a, b, cc} {
		if err := c.Store(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := c.Query(ctx, types.Filter{PID: strp("P1")}); err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, err := c.Query(ctx, types.Filter{PID: strp("P2")}); err != nil {
		t.Fatalf("query: %v", err)
	}

	top := c.TopQueriedFields(10)
	if len(top) != 1 || top[0].Field != "pid" {
		t.Fatalf("expected a single pid entry, got %+v", top)
	}
	if top[0].Frequency != 2 {
		t.Fatalf("expected frequency 2, got %d", top[0].Frequency)
	}
	if top[0].Drivers["process"] != 2 {
		t.Fatalf("expected 2 process-driver hits, got %+v", top[0].Drivers)
	}
}

func TestStoreAutoAssignsEventIDWhenEmpty(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	e := &types.Event{Timestamp: 100, PID: "P1", Module: "M", Function: "f", Arity: 1}
	if err := c.Store(ctx, e); err != nil {
		t.Fatalf("store: %v", err)
	}
	if e.EventID == "" {
		t.Fatal("expected Store to auto-assign a non-empty event id")
	}
	if _, err := types.ParseULID(e.EventID); err != nil {
		t.Fatalf("expected the auto-assigned id to be a valid ULID, got %q: %v", e.EventID, err)
	}
	if _, err := c.Get(e.EventID); err != nil {
		t.Fatalf("expected the auto-assigned id to be retrievable, got %v", err)
	}
}

func TestQueryPropagatesTimeoutFromExpiredDeadline(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	a, b, cc := scenarioEvents()
	for _, e := range []*types.Event{a, b, cc} {
		if err := c.Store(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer cancel()

	_, err := c.Query(expired, types.Filter{PID: strp("P1")})
	if errs.GetKind(err) != errs.KindTimeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func i64p(i int64) *int64 { return &i }

func ids(events []*types.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventID
	}
	return out
}
