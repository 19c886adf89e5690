package filter

import (
	"github.com/embertrace/engine/index"
	"github.com/embertrace/engine/model"
)

// SpanAttrs looks up the fully resolved attribute view of an already-stored
// span by key.
type SpanAttrs func(key model.Timestamp) map[string]string

// SpanDuration looks up a span's current duration by key: (duration,
// true) once closed, (0, false) while still open.
type SpanDuration func(key model.Timestamp) (uint64, bool)

// BuildSpanIndexedFilter compiles a validated BasicSpanFilter into an
// IndexedFilter against idx. Duration lowers to an Or of one Stratified
// child per band, per "Duration (spans) → Or(Stratified(band, range,
// residual?))" — bands the comparison can decide outright need no residual;
// bands straddling the bound get a per-record check.
func BuildSpanIndexedFilter(f *BasicSpanFilter, idx *index.SpanIndexes, attrs SpanAttrs, duration SpanDuration, resolver Resolver) *IndexedFilter {
	switch f.Op {
	case OpAnd:
		if len(f.Children) == 0 {
			return single(idx.All, nil)
		}
		children := make([]*IndexedFilter, len(f.Children))
		for i, c := range f.Children {
			children[i] = BuildSpanIndexedFilter(c, idx, attrs, duration, resolver)
		}
		return And(children...).Simplify()
	case OpOr:
		children := make([]*IndexedFilter, len(f.Children))
		for i, c := range f.Children {
			children[i] = BuildSpanIndexedFilter(c, idx, attrs, duration, resolver)
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
	case OpName:
		return single(idx.Names[f.Name], nil)
	case OpRoot:
		return single(idx.Roots, nil)
	case OpDuration:
		var children []*IndexedFilter
		for _, band := range idx.Durations.ToStratifiedIndexes() {
			verdict := matchesDurationRange(f.DurationOp, f.DurationValue, band.Range)
			switch verdict {
			case durationAccept:
				children = append(children, stratified(band.Index, band.Range, nil))
			case durationReject:
				// whole band rejected outright, contributes nothing to the Or.
			case durationNeedsCheck:
				durOp, durVal := f.DurationOp, f.DurationValue
				children = append(children, stratified(band.Index, band.Range, func(key model.Timestamp) bool {
					d, known := duration(key)
					if !known {
						return durOp == OpGt
					}
					if durOp == OpGt {
						return d > durVal
					}
					return d < durVal
				}))
			}
		}
		if len(children) == 0 {
			return single(nil, nil)
		}
		return Or(children...).Simplify()
	case OpCreated:
		switch f.CreatedOp {
		case OpGt:
			return single(idx.All.Slice(f.CreatedValue.Add(1), model.MaxTimestamp), nil)
		case OpGte:
			return single(idx.All.Slice(f.CreatedValue, model.MaxTimestamp), nil)
		case OpLt:
			// Sub saturates at MinTimestamp, so nothing can be created
			// before a value at or below it: that case is an empty leaf.
			if f.CreatedValue <= model.MinTimestamp {
				return single(nil, nil)
			}
			return single(idx.All.Slice(model.MinTimestamp, f.CreatedValue.Sub(1)), nil)
		case OpLte:
			return single(idx.All.Slice(model.MinTimestamp, f.CreatedValue), nil)
		}
		return single(nil, nil)
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

type durationVerdict int

const (
	durationAccept durationVerdict = iota
	durationReject
	durationNeedsCheck
)

// matchesDurationRange decides a whole band against a Duration(op, value)
// bound without inspecting individual records, mirroring the "accept
// outright / reject outright / needs per-record check" trichotomy: a band
// is fully decidable when the bound falls entirely outside or
// wholly-below/above the band's [Start,End) range.
func matchesDurationRange(op ValueOperator, value uint64, r index.DurationRange) durationVerdict {
	switch op {
	case OpGt:
		if r.Start > value {
			return durationAccept
		}
		if r.End != 0 && r.End-1 <= value {
			return durationReject
		}
		return durationNeedsCheck
	case OpLt:
		if r.End <= value {
			return durationAccept
		}
		if r.Start >= value {
			return durationReject
		}
		return durationNeedsCheck
	default:
		return durationNeedsCheck
	}
}
