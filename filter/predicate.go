// Package filter implements the textual predicate grammar, its validation
// and lowering to a BasicFilter tree, and the indexed filter planner that
// compiles a BasicFilter into an IndexedFilter ready for the search
// iterator.
package filter

import "strings"

// PropertyKind distinguishes an inherent (built-in) predicate property from
// an attribute lookup.
type PropertyKind int

const (
	// Attribute predicates compare a resolved, ancestor-inherited attribute.
	Attribute PropertyKind = iota
	// Inherent predicates compare one of the reserved built-in properties
	// for the entity kind (level, instance, stack, duration, ...).
	Inherent
)

// ValueOperator is the comparison a predicate's value is combined with. Not
// every property accepts every operator; see FromPredicateEvent,
// FromPredicateSpan and FromPredicateInstance.
type ValueOperator int

const (
	// OpNone is the zero value; a term with no operator is reported as a
	// nil *ValueOperator, not as OpNone.
	OpNone ValueOperator = iota
	OpGt
	OpGte
	OpLt
	OpLte
)

func (op ValueOperator) symbol() string {
	switch op {
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	default:
		return ""
	}
}

// FilterPredicate is one parsed (but not yet validated) term of the filter
// language: "[#|@]property[:operator]value".
type FilterPredicate struct {
	PropertyKind *PropertyKind
	Property     string
	ValueOperator *ValueOperator
	Value        string
}

// RenderPredicate renders p back to its canonical textual form: the #/@
// prefix is always present (even if the original text omitted it), and an
// operator is rendered whenever one is set. Level's Gte operator is
// rendered as a trailing "+" on the value, matching how it is entered; every
// other operator is rendered as a symbol prefix before the value.
func RenderPredicate(p FilterPredicate) string {
	var b strings.Builder

	if p.PropertyKind != nil && *p.PropertyKind == Inherent {
		b.WriteByte('#')
	} else {
		b.WriteByte('@')
	}
	b.WriteString(p.Property)
	b.WriteByte(':')

	if p.Property == "level" && p.ValueOperator != nil && *p.ValueOperator == OpGte {
		b.WriteString(p.Value)
		b.WriteByte('+')
		return b.String()
	}

	if p.ValueOperator != nil {
		b.WriteString(p.ValueOperator.symbol())
	}
	b.WriteString(p.Value)

	return b.String()
}

// ParsePredicateText splits one whitespace-delimited term into its raw
// syntactic parts. It performs no semantic validation — that is the job of
// FromPredicateEvent, FromPredicateSpan and FromPredicateInstance — only
// the #/@ prefix, the
// property/value split on ':', and any leading comparison operator or
// trailing level "+" are recognized here.
func ParsePredicateText(term string) FilterPredicate {
	var kind *PropertyKind
	rest := term

	if strings.HasPrefix(rest, "#") {
		k := Inherent
		kind = &k
		rest = rest[1:]
	} else if strings.HasPrefix(rest, "@") {
		k := Attribute
		kind = &k
		rest = rest[1:]
	}

	property := rest
	value := ""
	if idx := strings.IndexByte(rest, ':'); idx >= 0 {
		property = rest[:idx]
		value = rest[idx+1:]
	}

	var op *ValueOperator

	if property == "level" {
		if strings.HasSuffix(value, "+") {
			o := OpGte
			op = &o
			value = strings.TrimSuffix(value, "+")
		}
	} else {
		switch {
		case strings.HasPrefix(value, ">="):
			o := OpGte
			op = &o
			value = value[2:]
		case strings.HasPrefix(value, "<="):
			o := OpLte
			op = &o
			value = value[2:]
		case strings.HasPrefix(value, "≥"):
			o := OpGte
			op = &o
			value = strings.TrimPrefix(value, "≥")
		case strings.HasPrefix(value, "≤"):
			o := OpLte
			op = &o
			value = strings.TrimPrefix(value, "≤")
		case strings.HasPrefix(value, ">"):
			o := OpGt
			op = &o
			value = value[1:]
		case strings.HasPrefix(value, "<"):
			o := OpLt
			op = &o
			value = value[1:]
		}
	}

	return FilterPredicate{
		PropertyKind:  kind,
		Property:      property,
		ValueOperator: op,
		Value:         value,
	}
}

// splitTerms splits filter text on whitespace, dropping empty terms.
func splitTerms(text string) []string {
	fields := strings.Fields(text)
	return fields
}

// resolveKind returns the predicate's effective property kind: an absent
// prefix resolves to Inherent iff the property is reserved for this entity
// kind, else it resolves to Attribute.
func resolveKind(p FilterPredicate, reserved map[string]bool) PropertyKind {
	if p.PropertyKind != nil {
		return *p.PropertyKind
	}
	if reserved[p.Property] {
		return Inherent
	}
	return Attribute
}
