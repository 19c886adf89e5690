package filter

import "github.com/embertrace/engine/model"

// BasicSpanFilter is the validated AST for a span-entity filter: the event
// set (level, instance, stack) plus duration, name, created, and parent.
type BasicSpanFilter struct {
	Op       BasicOp
	Children []*BasicSpanFilter

	Level    model.Level
	LevelGte bool

	InstanceID model.InstanceID
	Stack      model.FullSpanID
	Name       string

	DurationOp    ValueOperator // OpGt or OpLt
	DurationValue uint64

	CreatedOp    ValueOperator // OpGt, OpGte, OpLt, OpLte
	CreatedValue model.Timestamp

	AttrName  string
	AttrValue string
}

var reservedSpanProperties = map[string]bool{
	"level": true, "instance": true, "stack": true,
	"duration": true, "name": true, "created": true, "parent": true,
}

// FromPredicateSpan validates and lowers one FilterPredicate to a
// BasicSpanFilter leaf.
func FromPredicateSpan(term string, p FilterPredicate) (*BasicSpanFilter, *InputError) {
	kind := resolveKind(p, reservedSpanProperties)

	if kind == Attribute {
		if p.ValueOperator != nil {
			return nil, &InputError{Term: term, Message: "InvalidAttributeOperator"}
		}
		return &BasicSpanFilter{Op: OpAttribute, AttrName: p.Property, AttrValue: p.Value}, nil
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
		return &BasicSpanFilter{Op: OpLevel, Level: lvl, LevelGte: gte}, nil

	case "instance":
		if p.ValueOperator != nil {
			return nil, &InputError{Term: term, Message: "InvalidInstanceOperator"}
		}
		id, ok := parseU64(p.Value)
		if !ok {
			return nil, &InputError{Term: term, Message: "InvalidInstanceValue"}
		}
		return &BasicSpanFilter{Op: OpInstance, InstanceID: model.InstanceID(id)}, nil

	case "stack":
		if p.ValueOperator != nil {
			return nil, &InputError{Term: term, Message: "InvalidStackOperator"}
		}
		id, ok := model.ParseFullSpanID(p.Value)
		if !ok {
			return nil, &InputError{Term: term, Message: "InvalidStackValue"}
		}
		return &BasicSpanFilter{Op: OpStack, Stack: id}, nil

	case "name":
		if p.ValueOperator != nil {
			return nil, &InputError{Term: term, Message: "InvalidNameOperator"}
		}
		return &BasicSpanFilter{Op: OpName, Name: p.Value}, nil

	case "parent":
		if p.ValueOperator != nil {
			return nil, &InputError{Term: term, Message: "InvalidParentOperator"}
		}
		if p.Value != "none" {
			return nil, &InputError{Term: term, Message: "InvalidParentValue"}
		}
		return &BasicSpanFilter{Op: OpRoot}, nil

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
		return &BasicSpanFilter{Op: OpDuration, DurationOp: *p.ValueOperator, DurationValue: v}, nil

	case "created":
		if p.ValueOperator == nil {
			return nil, &InputError{Term: term, Message: "MissingCreatedOperator"}
		}
		v, ok := parseU64(p.Value)
		if !ok {
			return nil, &InputError{Term: term, Message: "InvalidCreatedValue"}
		}
		return &BasicSpanFilter{Op: OpCreated, CreatedOp: *p.ValueOperator, CreatedValue: model.Timestamp(v)}, nil

	default:
		return nil, &InputError{Term: term, Message: "InvalidInherentProperty"}
	}
}

// Matches reports whether f accepts a record with the given span-side data.
// duration and durationKnown describe the span's current state: a
// still-open span reports durationKnown=false and is treated as having
// effectively infinite duration for Duration filters.
func (f *BasicSpanFilter) Matches(instanceID model.InstanceID, level model.Level, name string, createdAt model.Timestamp, isRoot bool, duration uint64, durationKnown bool, attrs map[string]string, chain func(model.FullSpanID) bool) bool {
	switch f.Op {
	case OpAnd:
		for _, c := range f.Children {
			if !c.Matches(instanceID, level, name, createdAt, isRoot, duration, durationKnown, attrs, chain) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range f.Children {
			if c.Matches(instanceID, level, name, createdAt, isRoot, duration, durationKnown, attrs, chain) {
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
	case OpName:
		return name == f.Name
	case OpRoot:
		return isRoot
	case OpDuration:
		if !durationKnown {
			// An open span is treated as infinite duration: it satisfies every
			// Gt bound and fails every Lt bound.
			return f.DurationOp == OpGt
		}
		if f.DurationOp == OpGt {
			return duration > f.DurationValue
		}
		return duration < f.DurationValue
	case OpCreated:
		return compareTimestamp(f.CreatedOp, createdAt, f.CreatedValue)
	case OpAttribute:
		v, ok := attrs[f.AttrName]
		return ok && v == f.AttrValue
	default:
		return false
	}
}

func compareTimestamp(op ValueOperator, actual, bound model.Timestamp) bool {
	switch op {
	case OpGt:
		return actual > bound
	case OpGte:
		return actual >= bound
	case OpLt:
		return actual < bound
	case OpLte:
		return actual <= bound
	default:
		return false
	}
}

// Simplify collapses single-child And/Or nodes and flattens nested
// same-kind combinators.
func (f *BasicSpanFilter) Simplify() *BasicSpanFilter {
	if f == nil {
		return nil
	}
	if f.Op != OpAnd && f.Op != OpOr {
		return f
	}
	flat := make([]*BasicSpanFilter, 0, len(f.Children))
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
	return &BasicSpanFilter{Op: f.Op, Children: flat}
}

// AndSpan combines filters with AND.
func AndSpan(filters ...*BasicSpanFilter) *BasicSpanFilter {
	return (&BasicSpanFilter{Op: OpAnd, Children: filters}).Simplify()
}

// ParseSpanFilter parses and validates a full filter text.
func ParseSpanFilter(text string) (*BasicSpanFilter, []*InputError) {
	var errs []*InputError
	var filters []*BasicSpanFilter

	for _, term := range splitTerms(text) {
		pred := ParsePredicateText(term)
		bf, err := FromPredicateSpan(term, pred)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		filters = append(filters, lowerLevelGteSpan(bf))
	}

	if len(errs) > 0 {
		return nil, errs
	}
	if len(filters) == 0 {
		return &BasicSpanFilter{Op: OpAnd}, nil
	}
	return AndSpan(filters...), nil
}

func lowerLevelGteSpan(f *BasicSpanFilter) *BasicSpanFilter {
	if f.Op != OpLevel || !f.LevelGte {
		return f
	}
	var children []*BasicSpanFilter
	for l := f.Level; l <= model.LevelError; l++ {
		children = append(children, &BasicSpanFilter{Op: OpLevel, Level: l})
	}
	return &BasicSpanFilter{Op: OpOr, Children: children}
}
