package types

// Order is the requested ordering of a query's results.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Filter is the set of recognized query predicates. Every field is
// optional; an unset field imposes no constraint. Being a struct, a
// Filter cannot carry a field not declared here.
type Filter struct {
	PID            *string
	EventType      *string
	SinceTimestamp *int64
	UntilTimestamp *int64
	CorrelationID  *string
	ASTNodeID      *string
	Module         *string
	Function       *string
	Arity          *int

	Limit int
	Order Order
}

// Validate reports whether the filter is internally coherent: a
// since/until range must not be inverted. There is no free-form map
// here to carry unknown keys, so Validate only checks range coherence.
func (f Filter) Validate() error {
	if f.SinceTimestamp != nil && f.UntilTimestamp != nil && *f.SinceTimestamp > *f.UntilTimestamp {
		return ErrInvalidRange
	}
	return nil
}

// HasFunctionTriple reports whether module, function, and arity are all
// present, which is the only combination the function index can drive on.
func (f Filter) HasFunctionTriple() bool {
	return f.Module != nil && f.Function != nil && f.Arity != nil
}

// EffectiveOrder returns the requested order, defaulting to ascending.
func (f Filter) EffectiveOrder() Order {
	if f.Order == OrderDesc {
		return OrderDesc
	}
	return OrderAsc
}

// ActiveFields names the predicate fields this filter constrains, for
// operational diagnostics (see observability.FieldStats). Module,
// Function, and Arity are reported jointly as "function_triple" since
// only that combination can drive the function index.
func (f Filter) ActiveFields() []string {
	var fields []string
	if f.PID != nil {
		fields = append(fields, "pid")
	}
	if f.EventType != nil {
		fields = append(fields, "event_type")
	}
	if f.SinceTimestamp != nil || f.UntilTimestamp != nil {
		fields = append(fields, "temporal_range")
	}
	if f.CorrelationID != nil {
		fields = append(fields, "correlation_id")
	}
	if f.ASTNodeID != nil {
		fields = append(fields, "ast_node_id")
	}
	if f.HasFunctionTriple() {
		fields = append(fields, "function_triple")
	} else if f.Module != nil || f.Function != nil || f.Arity != nil {
		fields = append(fields, "function_partial")
	}
	return fields
}
