// Package coordinator provides the process-wide handle spec.md §4.4
// describes: it wraps the Store, Planner, and Pruner behind a single
// entry point, serializing writers through a writerGate while letting
// queries run concurrently against the table-level locks each
// component already holds.
//
// The Start/Stop lifecycle (mu, running, cancel, a done channel)
// mirrors the teacher's app.App and compaction.Daemon.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arkilian/tracestore/internal/archive"
	"github.com/arkilian/tracestore/internal/config"
	errs "github.com/arkilian/tracestore/internal/errors"
	"github.com/arkilian/tracestore/internal/observability"
	"github.com/arkilian/tracestore/internal/planner"
	"github.com/arkilian/tracestore/internal/pruner"
	"github.com/arkilian/tracestore/internal/store"
	"github.com/arkilian/tracestore/pkg/types"
)

// fieldStatsWindow is how long a predicate field's usage is remembered
// before it ages out of FieldStats absent further queries touching it.
const fieldStatsWindow = time.Hour

// Coordinator is the public entry point for the event store.
type Coordinator struct {
	cfg      *config.Config
	store    *store.Store
	planner  *planner.Planner
	pruner   *pruner.Pruner
	metrics  *observability.StoreMetrics
	fields   *observability.FieldStats
	archiver archive.Archiver

	writerGate sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a Coordinator from cfg without starting its
// background prune loop; call Start to begin periodic pruning.
func New(cfg *config.Config) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("coordinator: invalid config: %w", err)
	}

	var archiver archive.Archiver
	switch cfg.Archiver {
	case config.ArchiverLocal:
		archiver = archive.NewLocalArchiver(cfg.Local.Path)
	case config.ArchiverS3:
		a, err := archive.NewS3Archiver(context.Background(), archive.S3Config{
			Bucket: cfg.S3.Bucket,
			Prefix: cfg.S3.Prefix,
			Region: cfg.S3.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("coordinator: failed to construct S3 archiver: %w", err)
		}
		archiver = a
	}

	s := store.New(cfg.ShardCount)
	p := planner.New(s, cfg.QueryDefaultLimit)
	pr := pruner.New(pruner.Config{
		MaxEvents:       cfg.MaxEvents,
		MaxAge:          cfg.MaxAge(),
		CleanupInterval: cfg.CleanupInterval(),
		LowWaterRatio:   cfg.LowWaterRatio,
	}, s, archiver)

	return &Coordinator{
		cfg:      cfg,
		store:    s,
		planner:  p,
		pruner:   pr,
		metrics:  observability.NewStoreMetrics(cfg.MetricsNamespace),
		fields:   observability.NewFieldStats(fieldStatsWindow),
		archiver: archiver,
	}, nil
}

// Start spawns the periodic prune timer tied to the Coordinator's
// lifetime.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("coordinator: already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	return c.pruner.Start(ctx)
}

// Stop cancels the prune timer and drops every table.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.pruner.Stop()
	c.store.Clear()
	return nil
}

// Store inserts a single event, serialized against every other writer.
// On success it synchronously checks the capacity trigger so
// total_events never exceeds max_events after a completed write
// (spec.md §8 P7). Per spec.md §4.1, the producer-facing contract is
// atomic: if the pruner cannot bring the store back within capacity
// (the pathological max_events <= 0 config, or a pruning race it can't
// win), the just-inserted event is rolled back and Err(CapacityExceeded)
// is returned, rather than letting the caller believe the write
// persisted.
func (c *Coordinator) Store(ctx context.Context, e *types.Event) error {
	c.writerGate.Lock()
	defer c.writerGate.Unlock()

	if e.EventID == "" {
		id, err := types.NewEventID()
		if err != nil {
			c.metrics.InsertsTotal.WithLabelValues("error").Inc()
			return errs.NewInternal("failed to generate event id", err)
		}
		e.EventID = id
	}

	if err := c.store.Insert(e); err != nil {
		if errs.GetKind(err) == errs.KindDuplicateID {
			c.metrics.InsertsTotal.WithLabelValues("duplicate").Inc()
		} else {
			c.metrics.InsertsTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	if _, err := c.pruner.MaybePruneCapacity(ctx); err != nil {
		c.store.Delete(e.EventID)
		c.metrics.InsertsTotal.WithLabelValues("capacity_exceeded").Inc()
		c.metrics.Observe(c.store.Snapshot())
		return err
	}
	c.metrics.InsertsTotal.WithLabelValues("accepted").Inc()
	c.metrics.Observe(c.store.Snapshot())
	return nil
}

// BatchResult is the outcome of StoreBatch.
type BatchResult struct {
	InsertedCount int
	SkippedIDs    []string
}

// StoreBatch inserts events in order, serialized against every other
// writer. A duplicate id is skipped and recorded; any other error
// stops the batch, leaving prior insertions in place and returning the
// count inserted so far. If the post-insert capacity check fails (the
// same atomic-outcome contract as Store; see spec.md §4.1), every
// event this call inserted is rolled back and Err(CapacityExceeded) is
// returned instead of a count the caller would otherwise believe
// landed.
func (c *Coordinator) StoreBatch(ctx context.Context, events []*types.Event) (BatchResult, error) {
	c.writerGate.Lock()
	defer c.writerGate.Unlock()

	for _, e := range events {
		if e.EventID == "" {
			id, err := types.NewEventID()
			if err != nil {
				c.metrics.InsertsTotal.WithLabelValues("error").Inc()
				return BatchResult{}, errs.NewInternal("failed to generate event id", err)
			}
			e.EventID = id
		}
	}

	res, err := c.store.InsertBatch(events)
	if err != nil {
		c.metrics.InsertsTotal.WithLabelValues("accepted").Add(float64(res.InsertedCount))
		c.metrics.InsertsTotal.WithLabelValues("duplicate").Add(float64(len(res.SkippedIDs)))
		c.metrics.InsertsTotal.WithLabelValues("error").Inc()
		return BatchResult{InsertedCount: res.InsertedCount, SkippedIDs: res.SkippedIDs}, err
	}

	if _, perr := c.pruner.MaybePruneCapacity(ctx); perr != nil {
		for _, id := range res.InsertedIDs {
			c.store.Delete(id)
		}
		c.metrics.InsertsTotal.WithLabelValues("duplicate").Add(float64(len(res.SkippedIDs)))
		c.metrics.InsertsTotal.WithLabelValues("capacity_exceeded").Add(float64(res.InsertedCount))
		c.metrics.Observe(c.store.Snapshot())
		return BatchResult{SkippedIDs: res.SkippedIDs}, perr
	}
	c.metrics.InsertsTotal.WithLabelValues("accepted").Add(float64(res.InsertedCount))
	c.metrics.InsertsTotal.WithLabelValues("duplicate").Add(float64(len(res.SkippedIDs)))
	c.metrics.Observe(c.store.Snapshot())
	return BatchResult{InsertedCount: res.InsertedCount, SkippedIDs: res.SkippedIDs}, nil
}

// Query plans and executes f without taking the writer gate — queries
// run concurrently with each other and with the writer, per spec.md §5.
// ctx carries the query's optional deadline; a deadline that expires
// mid-scan abandons the scan and returns Err(Timeout), per spec.md §5.
func (c *Coordinator) Query(ctx context.Context, f types.Filter) ([]*types.Event, error) {
	events, plan, err := c.planner.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	c.metrics.QueriesTotal.WithLabelValues(string(plan.Driver)).Inc()
	if plan.Driver == planner.DriverFullScan {
		c.metrics.FullScanTotal.Inc()
	}
	c.fields.RecordQuery(f.ActiveFields(), string(plan.Driver))
	return events, nil
}

// TopQueriedFields returns the n most frequently queried predicate
// fields and which driver served each, for operators deciding whether
// the store's fixed index set still matches live query traffic.
func (c *Coordinator) TopQueriedFields(n int) []observability.FieldCount {
	c.fields.Prune()
	return c.fields.GetTopFields(n)
}

// Get looks up a single event by id.
func (c *Coordinator) Get(id string) (*types.Event, error) {
	e, ok := c.store.Lookup(id)
	if !ok {
		return nil, errs.NewNotFound(id)
	}
	return e, nil
}

// Stats returns a point-in-time snapshot and refreshes the gauge
// metrics from it.
func (c *Coordinator) Stats() types.Stats {
	stats := c.store.Snapshot()
	c.metrics.Observe(stats)
	return stats
}

// Cleanup removes every event strictly older than cutoff, serialized
// against every other writer.
func (c *Coordinator) Cleanup(ctx context.Context, cutoff int64) (int, error) {
	c.writerGate.Lock()
	defer c.writerGate.Unlock()

	removed, err := c.pruner.Cleanup(ctx, cutoff)
	if err != nil {
		return removed, err
	}
	c.metrics.PrunedTotal.WithLabelValues("explicit").Add(float64(removed))
	c.metrics.Observe(c.store.Snapshot())
	return removed, nil
}

// Clear removes every event from every table, serialized against
// every other writer.
func (c *Coordinator) Clear() {
	c.writerGate.Lock()
	defer c.writerGate.Unlock()
	c.store.Clear()
	c.metrics.Observe(c.store.Snapshot())
}

// Metrics exposes the Prometheus registry backing this Coordinator's
// metrics, for callers that wire up their own /metrics HTTP handler.
func (c *Coordinator) Metrics() *observability.StoreMetrics {
	return c.metrics
}
