// Package planner implements the query planning heuristic of spec.md
// §4.2: pick the single most selective index as the driver for a
// filter, degrade every other filter field to a residual predicate
// evaluated after the driver's candidates are fetched from primary,
// and apply the requested ordering and limit.
package planner

import (
	"context"
	"sort"

	errs "github.com/arkilian/tracestore/internal/errors"
	"github.com/arkilian/tracestore/pkg/types"
)

// Scanner is the read surface the Planner needs from the Store. It is
// a narrow interface rather than a concrete *store.Store so a future
// statistics-driven planner can be swapped in without the Store
// package depending on the planner package (mirrors the teacher's
// Planner being built over *manifest.SQLiteCatalog instead of the
// executor inlining catalog lookups directly).
type Scanner interface {
	ScanTemporal(since, until int64) []string
	ScanBy(index, key string) []string
	FullScan() []string
	Lookup(id string) (*types.Event, bool)
}

// Driver names the index a Plan will scan to produce candidates. The
// Coordinator reports it as the queries_total "driver" label and in
// FieldStats.
type Driver string

const (
	DriverCorrelation Driver = "correlation"
	DriverASTNode     Driver = "ast_node"
	DriverFunction    Driver = "function"
	DriverProcess     Driver = "process"
	DriverTemporal    Driver = "temporal"
	DriverFullScan    Driver = "full_scan"
)

// Plan describes how a Filter will be executed: which index drives
// candidate selection, the residual predicates checked afterward, and
// the requested ordering/limit.
type Plan struct {
	Driver     Driver
	DriverArgs string
	Residuals  types.Filter
	Order      types.Order
	Limit      int
}

// Planner turns a Filter into a Plan and executes it against a Scanner.
type Planner struct {
	scanner      Scanner
	defaultLimit int
}

// New creates a Planner reading from scanner, falling back to
// defaultLimit when a Filter specifies none.
func New(scanner Scanner, defaultLimit int) *Planner {
	return &Planner{scanner: scanner, defaultLimit: defaultLimit}
}

// Plan implements the six-step selectivity heuristic of spec.md §4.2.
func (p *Planner) Plan(f types.Filter) (Plan, error) {
	if err := f.Validate(); err != nil {
		return Plan{}, errs.NewInvalidFilter(err.Error())
	}

	plan := Plan{
		Order: f.EffectiveOrder(),
		Limit: f.Limit,
	}
	if plan.Limit <= 0 {
		plan.Limit = p.defaultLimit
	}

	residuals := f
	switch {
	case f.CorrelationID != nil:
		plan.Driver = DriverCorrelation
		plan.DriverArgs = *f.CorrelationID
		residuals.CorrelationID = nil
	case f.ASTNodeID != nil:
		plan.Driver = DriverASTNode
		plan.DriverArgs = *f.ASTNodeID
		residuals.ASTNodeID = nil
	case f.HasFunctionTriple():
		plan.Driver = DriverFunction
		plan.DriverArgs = types.FunctionKey(*f.Module, *f.Function, *f.Arity)
		residuals.Module, residuals.Function, residuals.Arity = nil, nil, nil
	case f.PID != nil:
		plan.Driver = DriverProcess
		plan.DriverArgs = *f.PID
		residuals.PID = nil
	case f.SinceTimestamp != nil || f.UntilTimestamp != nil:
		// The range bounds stay in residuals: Execute reads them from there
		// to bound the temporal scan.
		plan.Driver = DriverTemporal
	default:
		plan.Driver = DriverFullScan
	}

	// Partial function filters (e.g. only module) never fully satisfy a
	// driver; they remain in residuals as-is so they're checked after
	// fetch, per spec.md §4.2 "Partial function filters... always
	// degrade to residuals."
	if !f.HasFunctionTriple() {
		residuals.Module = f.Module
		residuals.Function = f.Function
		residuals.Arity = f.Arity
	}

	plan.Residuals = residuals
	return plan, nil
}

const (
	minInt64 = -1 << 63
	maxInt64 = 1<<63 - 1
)

// Execute runs plan against the Scanner: fetches driver candidates,
// applies residual predicates, orders, and truncates to the limit.
// ctx carries the query's optional deadline (spec.md §5); if it expires
// before the scan loop finishes fetching and filtering candidates, the
// scan is abandoned and Err(Timeout) is returned.
func (p *Planner) Execute(ctx context.Context, plan Plan) ([]*types.Event, error) {
	var ids []string
	switch plan.Driver {
	case DriverCorrelation:
		ids = p.scanner.ScanBy("correlation", plan.DriverArgs)
	case DriverASTNode:
		ids = p.scanner.ScanBy("ast_node", plan.DriverArgs)
	case DriverFunction:
		ids = p.scanner.ScanBy("function", plan.DriverArgs)
	case DriverProcess:
		ids = p.scanner.ScanBy("process", plan.DriverArgs)
	case DriverTemporal:
		since, until := int64(minInt64), int64(maxInt64)
		if plan.Residuals.SinceTimestamp != nil {
			since = *plan.Residuals.SinceTimestamp
		}
		if plan.Residuals.UntilTimestamp != nil {
			until = *plan.Residuals.UntilTimestamp
		}
		ids = p.scanner.ScanTemporal(since, until)
	default:
		ids = p.scanner.FullScan()
	}

	events := make([]*types.Event, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.KindTimeout, "query deadline exceeded during scan", err)
		}
		e, ok := p.scanner.Lookup(id)
		if !ok {
			// Dangling index reference raced with a delete between driver
			// scan and fetch; the primary-last-seen discipline treats this
			// as absence, not an error.
			continue
		}
		if matchesResiduals(e, plan.Residuals) {
			events = append(events, e)
		}
	}

	// Candidates from every driver, the temporal one included, are sorted
	// here so the requested order and the event_id tie-break apply
	// regardless of driver (spec.md §4.2 "Ordering").
	sortEvents(events, plan.Order)

	if plan.Limit > 0 && len(events) > plan.Limit {
		events = events[:plan.Limit]
	}
	return events, nil
}

// Query is the convenience form combining Plan and Execute.
func (p *Planner) Query(ctx context.Context, f types.Filter) ([]*types.Event, Plan, error) {
	plan, err := p.Plan(f)
	if err != nil {
		return nil, Plan{}, err
	}
	events, err := p.Execute(ctx, plan)
	if err != nil {
		return nil, plan, err
	}
	return events, plan, nil
}

func matchesResiduals(e *types.Event, f types.Filter) bool {
	if f.PID != nil && e.PID != *f.PID {
		return false
	}
	if f.EventType != nil && e.EventType != *f.EventType {
		return false
	}
	if f.SinceTimestamp != nil && e.Timestamp < *f.SinceTimestamp {
		return false
	}
	if f.UntilTimestamp != nil && e.Timestamp > *f.UntilTimestamp {
		return false
	}
	if f.CorrelationID != nil && (e.CorrelationID == nil || *e.CorrelationID != *f.CorrelationID) {
		return false
	}
	if f.ASTNodeID != nil && (e.ASTNodeID == nil || *e.ASTNodeID != *f.ASTNodeID) {
		return false
	}
	if f.Module != nil && e.Module != *f.Module {
		return false
	}
	if f.Function != nil && e.Function != *f.Function {
		return false
	}
	if f.Arity != nil && e.Arity != *f.Arity {
		return false
	}
	return true
}

// sortEvents orders by timestamp, ties broken lexicographically on
// event_id — deterministic regardless of which driver produced the
// candidate set (spec.md §4.2 "Ordering").
func sortEvents(events []*types.Event, order types.Order) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Timestamp != b.Timestamp {
			if order == types.OrderDesc {
				return a.Timestamp > b.Timestamp
			}
			return a.Timestamp < b.Timestamp
		}
		return a.EventID < b.EventID
	})
}
