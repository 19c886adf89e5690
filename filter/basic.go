package filter

import (
	"strconv"

	"github.com/embertrace/engine/model"
)

// BasicOp is the boolean combinator or leaf kind of a BasicEventFilter /
// BasicSpanFilter / BasicInstanceFilter node.
type BasicOp int

const (
	OpAnd BasicOp = iota
	OpOr
	OpLevel
	OpInstance
	OpStack // #stack: descendant-of-span, shared by events and spans
	OpName
	OpRoot // #parent:none, spans only
	OpDuration
	OpCreated // #created, spans only
	OpConnected
	OpDisconnected
	OpAttribute
)

// BasicEventFilter is the validated AST for an event-entity filter,
// directly mirroring the Reserved inherent properties for events: level,
// instance, stack, plus attribute equality, combined with and/or.
type BasicEventFilter struct {
	Op       BasicOp
	Children []*BasicEventFilter

	Level    model.Level
	LevelGte bool

	InstanceID model.InstanceID

	Stack model.FullSpanID

	AttrName  string
	AttrValue string
}

// reservedEventProperties lists the inherent property names for events.
var reservedEventProperties = map[string]bool{
	"level": true, "instance": true, "stack": true,
}

// FromPredicateEvent validates and lowers one FilterPredicate to a
// BasicEventFilter leaf (or, for level≥, an Or of Level leaves).
func FromPredicateEvent(term string, p FilterPredicate) (*BasicEventFilter, *InputError) {
	kind := resolveKind(p, reservedEventProperties)

	if kind == Attribute {
		if p.ValueOperator != nil {
			return nil, &InputError{Term: term, Message: "InvalidAttributeOperator"}
		}
		return &BasicEventFilter{Op: OpAttribute, AttrName: p.Property, AttrValue: p.Value}, nil
	}

	switch p.Property {
	case "level":
		lvl, ok := model.ParseLevel(p.Value)
		if !ok {
			return nil, &InputError{Term: term, Message: "InvalidLevelValue"}
		}
		if p.ValueOperator != nil && *p.ValueOperator != OpGte {
			return nil, &InputError{Term: term, Message: "InvalidLevelOperator"}
		}
		gte := p.ValueOperator != nil && *p.ValueOperator == OpGte
		return &BasicEventFilter{Op: OpLevel, Level: lvl, LevelGte: gte}, nil

	case "instance":
		if p.ValueOperator != nil {
			return nil, &InputError{Term: term, Message: "InvalidInstanceOperator"}
		}
		id, ok := parseU64(p.Value)
		if !ok {
			return nil, &InputError{Term: term, Message: "InvalidInstanceValue"}
		}
		return &BasicEventFilter{Op: OpInstance, InstanceID: model.InstanceID(id)}, nil

	case "stack":
		if p.ValueOperator != nil {
			return nil, &InputError{Term: term, Message: "InvalidStackOperator"}
		}
		id, ok := model.ParseFullSpanID(p.Value)
		if !ok {
			return nil, &InputError{Term: term, Message: "InvalidStackValue"}
		}
		return &BasicEventFilter{Op: OpStack, Stack: id}, nil

	default:
		return nil, &InputError{Term: term, Message: "InvalidInherentProperty"}
	}
}

// Matches reports whether f accepts a record with the given event-side
// data. attrs is the fully ancestor-resolved attribute view (own fields win
// over inherited ones); chain reports whether the given span is in the
// record's ancestor chain.
func (f *BasicEventFilter) Matches(instanceID model.InstanceID, level model.Level, attrs map[string]string, chain func(model.FullSpanID) bool) bool {
	switch f.Op {
	case OpAnd:
		for _, c := range f.Children {
			if !c.Matches(instanceID, level, attrs, chain) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range f.Children {
			if c.Matches(instanceID, level, attrs, chain) {
				return true
			}
		}
		return false
	case OpLevel:
		if f.LevelGte {
			return level >= f.Level
		}
		return level == f.Level
	case OpInstance:
		return instanceID == f.InstanceID
	case OpStack:
		return chain(f.Stack)
	case OpAttribute:
		v, ok := attrs[f.AttrName]
		return ok && v == f.AttrValue
	default:
		return false
	}
}

// Simplify collapses single-child And/Or nodes and flattens nested
// same-kind combinators, matching the planner's simplify pass.
func (f *BasicEventFilter) Simplify() *BasicEventFilter {
	if f == nil {
		return nil
	}
	if f.Op != OpAnd && f.Op != OpOr {
		return f
	}
	flat := make([]*BasicEventFilter, 0, len(f.Children))
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
	return &BasicEventFilter{Op: f.Op, Children: flat}
}

// AndEvent combines filters with AND, per "multiple predicates are combined
// with AND".
func AndEvent(filters ...*BasicEventFilter) *BasicEventFilter {
	return (&BasicEventFilter{Op: OpAnd, Children: filters}).Simplify()
}

// ParseEventFilter parses and validates a full filter text, returning the
// top-level AND of every term's lowered filter. levelGte predicates expand
// to an Or over {Level(L)..Level(Error)} as described in the filter
// language grammar.
func ParseEventFilter(text string) (*BasicEventFilter, []*InputError) {
	var errs []*InputError
	var filters []*BasicEventFilter

	for _, term := range splitTerms(text) {
		pred := ParsePredicateText(term)
		bf, err := FromPredicateEvent(term, pred)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		filters = append(filters, lowerLevelGte(bf))
	}

	if len(errs) > 0 {
		return nil, errs
	}
	if len(filters) == 0 {
		return &BasicEventFilter{Op: OpAnd}, nil
	}
	return AndEvent(filters...), nil
}

// lowerLevelGte expands a Level filter with LevelGte set into an Or over
// every level from L to Error, per "level≥L lowers to OR over
// {Level(L), …, Level(Error)}".
func lowerLevelGte(f *BasicEventFilter) *BasicEventFilter {
	if f.Op != OpLevel || !f.LevelGte {
		return f
	}
	var children []*BasicEventFilter
	for l := f.Level; l <= model.LevelError; l++ {
		children = append(children, &BasicEventFilter{Op: OpLevel, Level: l})
	}
	return &BasicEventFilter{Op: OpOr, Children: children}
}

func parseU64(s string) (uint64, bool) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
