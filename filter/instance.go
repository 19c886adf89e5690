package filter

import "github.com/embertrace/engine/model"

// BasicInstanceFilter is the validated AST for an instance-entity filter:
// duration, connected, disconnected, plus attribute equality.
type BasicInstanceFilter struct {
	Op       BasicOp
	Children []*BasicInstanceFilter

	DurationOp    ValueOperator
	DurationValue uint64

	ConnectedOp    ValueOperator
	ConnectedValue model.Timestamp

	DisconnectedOp    ValueOperator
	DisconnectedValue model.Timestamp

	AttrName  string
	AttrValue string
}

var reservedInstanceProperties = map[string]bool{
	"duration": true, "connected": true, "disconnected": true,
}

// FromPredicateInstance validates and lowers one FilterPredicate to a
// BasicInstanceFilter leaf.
func FromPredicateInstance(term string, p FilterPredicate) (*BasicInstanceFilter, *InputError) {
	kind := resolveKind(p, reservedInstanceProperties)

	if kind == Attribute {
		if p.ValueOperator != nil {
			return nil, &InputError{Term: term, Message: "InvalidAttributeOperator"}
		}
		return &BasicInstanceFilter{Op: OpAttribute, AttrName: p.Property, AttrValue: p.Value}, nil
	}

	switch p.Property {
	case "duration":
		if p.ValueOperator == nil {
			return nil, &InputError{Term: term, Message: "MissingDurationOperator"}
		}
		if *p.ValueOperator != OpGt && *p.ValueOperator != OpLt {
			return nil, &InputError{Term: term, Message: "InvalidDurationOperator"}
		}
		v, ok := parseU64(p.Value)
		if !ok {
			return nil, &InputError{Term: term, Message: "InvalidDurationValue"}
		}
		return &BasicInstanceFilter{Op: OpDuration, DurationOp: *p.ValueOperator, DurationValue: v}, nil

	case "connected":
		if p.ValueOperator == nil {
			return nil, &InputError{Term: term, Message: "MissingCreatedOperator"}
		}
		v, ok := parseU64(p.Value)
		if !ok {
			return nil, &InputError{Term: term, Message: "InvalidCreatedValue"}
		}
		return &BasicInstanceFilter{Op: OpConnected, ConnectedOp: *p.ValueOperator, ConnectedValue: model.Timestamp(v)}, nil

	case "disconnected":
		if p.ValueOperator == nil {
			return nil, &InputError{Term: term, Message: "MissingCreatedOperator"}
		}
		v, ok := parseU64(p.Value)
		if !ok {
			return nil, &InputError{Term: term, Message: "InvalidCreatedValue"}
		}
		return &BasicInstanceFilter{Op: OpDisconnected, DisconnectedOp: *p.ValueOperator, DisconnectedValue: model.Timestamp(v)}, nil

	default:
		return nil, &InputError{Term: term, Message: "InvalidInherentProperty"}
	}
}

// Matches reports whether f accepts an instance with the given data.
// durationKnown mirrors the span case: a still-connected instance is
// treated as having infinite duration.
func (f *BasicInstanceFilter) Matches(connectedAt model.Timestamp, disconnectedAt *model.Timestamp, duration uint64, durationKnown bool, attrs map[string]string) bool {
	switch f.Op {
	case OpAnd:
		for _, c := range f.Children {
			if !c.Matches(connectedAt, disconnectedAt, duration, durationKnown, attrs) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range f.Children {
			if c.Matches(connectedAt, disconnectedAt, duration, durationKnown, attrs) {
				return true
			}
		}
		return false
	case OpDuration:
		if !durationKnown {
			return f.DurationOp == OpGt
		}
		if f.DurationOp == OpGt {
			return duration > f.DurationValue
		}
		return duration < f.DurationValue
	case OpConnected:
		return compareTimestamp(f.ConnectedOp, connectedAt, f.ConnectedValue)
	case OpDisconnected:
		if disconnectedAt == nil {
			return false
		}
		return compareTimestamp(f.DisconnectedOp, *disconnectedAt, f.DisconnectedValue)
	case OpAttribute:
		v, ok := attrs[f.AttrName]
		return ok && v == f.AttrValue
	default:
		return false
	}
}

// Simplify collapses single-child And/Or nodes and flattens nested
// same-kind combinators.
func (f *BasicInstanceFilter) Simplify() *BasicInstanceFilter {
	if f == nil {
		return nil
	}
	if f.Op != OpAnd && f.Op != OpOr {
		return f
	}
	flat := make([]*BasicInstanceFilter, 0, len(f.Children))
	for _, c := range f.Children {
		c = c.Simplify()
		if c.Op == f.Op {
			flat = append(flat, c.Children...)
		} else {
			flat = append(flat, c)
		}
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &BasicInstanceFilter{Op: f.Op, Children: flat}
}

// AndInstance combines filters with AND.
func AndInstance(filters ...*BasicInstanceFilter) *BasicInstanceFilter {
	return (&BasicInstanceFilter{Op: OpAnd, Children: filters}).Simplify()
}

// ParseInstanceFilter parses and validates a full filter text.
func ParseInstanceFilter(text string) (*BasicInstanceFilter, []*InputError) {
	var errs []*InputError
	var filters []*BasicInstanceFilter

	for _, term := range splitTerms(text) {
		pred := ParsePredicateText(term)
		bf, err := FromPredicateInstance(term, pred)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		filters = append(filters, bf)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	if len(filters) == 0 {
		return &BasicInstanceFilter{Op: OpAnd}, nil
	}
	return AndInstance(filters...), nil
}
