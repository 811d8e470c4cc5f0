// Package types defines the data shapes shared across the event store:
// the Event record itself, query filters, index keys, the stats
// snapshot, and ULID event ids. The store treats Event as closed — it reads the documented
// fields and never inspects Payload.
package types

// Event is a single runtime observation captured by the instrumentation
// pipeline. Once stored an Event is never mutated; it is only removed by
// deletion or pruning.
type Event struct {
	// EventID uniquely identifies the event for the lifetime of the process.
	EventID string `json:"event_id"`

	// Timestamp is a monotonic-ish clock reading in milliseconds (the
	// pruner's age cutoff is computed in Unix milliseconds). Events are
	// typically, but not strictly, monotonically increasing across stores.
	Timestamp int64 `json:"timestamp"`

	// PID is an opaque, comparable process handle.
	PID string `json:"pid"`

	// Module, Function, Arity name a code location.
	Module   string `json:"module"`
	Function string `json:"function"`
	Arity    int    `json:"arity"`

	// CorrelationID links causally related events. Nil means absent.
	CorrelationID *string `json:"correlation_id,omitempty"`

	// ASTNodeID links the event to a static code node. Nil means absent.
	ASTNodeID *string `json:"ast_node_id,omitempty"`

	// EventType is a residual-filter-only tag; never indexed.
	EventType string `json:"event_type"`

	// Payload is arbitrary, uninspected event data.
	Payload map[string]any `json:"payload,omitempty"`
}

// HasCorrelation reports whether the event carries a correlation id.
func (e *Event) HasCorrelation() bool {
	return e.CorrelationID != nil
}

// HasASTNode reports whether the event carries an AST-node id.
func (e *Event) HasASTNode() bool {
	return e.ASTNodeID != nil
}

// FunctionKey returns the (module, function, arity) composite key used by
// the function index.
func (e *Event) FunctionKey() string {
	return FunctionKey(e.Module, e.Function, e.Arity)
}

// eventIDGenerator backs NewEventID. A single process-wide generator
// keeps auto-assigned event ids monotonically ordered the way the
// teacher's partition builder relies on for its own ULID fallback.
var eventIDGenerator = NewULIDGenerator()

// NewEventID generates a time-ordered, lexicographically sortable event
// id for a producer that doesn't supply its own, mirroring the
// partition builder's "use provided event_id or generate new ULID"
// fallback.
func NewEventID() (string, error) {
	id, err := eventIDGenerator.Generate()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
