package filter

import (
	"github.com/embertrace/engine/index"
	"github.com/embertrace/engine/model"
)

// EventAttrs looks up the fully resolved (ancestor-inherited) attribute view
// of an already-ingested event by key.
type EventAttrs func(key model.Timestamp) map[string]string

// Resolver maps the external ids a predicate names to the internal keys the
// indexes are partitioned by. Unknown ids resolve to (0, false); Build
// lowers that predicate to an empty leaf, so the lookup is legitimately
// empty instead of failing the query.
type Resolver interface {
	InstanceKey(id model.InstanceID) (model.InstanceKey, bool)
	SpanKey(id model.FullSpanID) (model.SpanKey, bool)
}

// BuildEventIndexedFilter compiles a validated BasicEventFilter into an
// IndexedFilter against idx, per the planner construction rules: Level maps
// straight to its level slice; Instance/Stack resolve their external id to
// an internal key (an unknown id maps to a sentinel that matches nothing);
// Attribute uses the attribute index when the name is known, else scans All
// with a residual check.
func BuildEventIndexedFilter(f *BasicEventFilter, idx *index.EventIndexes, attrs EventAttrs, resolver Resolver) *IndexedFilter {
	switch f.Op {
	case OpAnd:
		if len(f.Children) == 0 {
			return single(idx.All, nil)
		}
		children := make([]*IndexedFilter, len(f.Children))
		for i, c := range f.Children {
			children[i] = BuildEventIndexedFilter(c, idx, attrs, resolver)
		}
		return And(children...).Simplify()
	case OpOr:
		children := make([]*IndexedFilter, len(f.Children))
		for i, c := range f.Children {
			children[i] = BuildEventIndexedFilter(c, idx, attrs, resolver)
		}
		return Or(children...).Simplify()
	case OpLevel:
		return single(idx.Levels[f.Level], nil)
	case OpInstance:
		instKey, ok := resolver.InstanceKey(f.InstanceID)
		if !ok {
			return single(nil, nil)
		}
		return single(idx.Instances[instKey], nil)
	case OpStack:
		spanKey, ok := resolver.SpanKey(f.Stack)
		if !ok {
			return single(nil, nil)
		}
		return single(idx.Descendents[spanKey], nil)
	case OpAttribute:
		if byValue, ok := idx.Attributes[f.AttrName]; ok {
			return single(byValue[f.AttrValue], nil)
		}
		return single(idx.All, func(key model.Timestamp) bool {
			return attrs(key)[f.AttrName] == f.AttrValue
		})
	default:
		return single(nil, nil)
	}
}
