package filter

import (
	"github.com/embertrace/engine/index"
	"github.com/embertrace/engine/model"
)

// InstanceAttrs looks up the attribute view of an already-connected
// instance by key.
type InstanceAttrs func(key model.Timestamp) map[string]string

// InstanceDuration looks up an instance's current duration by key.
type InstanceDuration func(key model.Timestamp) (uint64, bool)

// InstanceDisconnectedAt looks up an instance's disconnect timestamp, if any.
type InstanceDisconnectedAt func(key model.Timestamp) *model.Timestamp

// BuildInstanceIndexedFilter compiles a validated BasicInstanceFilter into
// an IndexedFilter against idx. Instances are not stratified by duration —
// there are orders of magnitude fewer instances than spans, so Duration
// scans All with a residual check instead of banding.
func BuildInstanceIndexedFilter(f *BasicInstanceFilter, idx *index.InstanceIndexes, attrs InstanceAttrs, duration InstanceDuration, disconnectedAt InstanceDisconnectedAt) *IndexedFilter {
	switch f.Op {
	case OpAnd:
		if len(f.Children) == 0 {
			return single(idx.All, nil)
		}
		children := make([]*IndexedFilter, len(f.Children))
		for i, c := range f.Children {
			children[i] = BuildInstanceIndexedFilter(c, idx, attrs, duration, disconnectedAt)
		}
		return And(children...).Simplify()
	case OpOr:
		children := make([]*IndexedFilter, len(f.Children))
		for i, c := range f.Children {
			children[i] = BuildInstanceIndexedFilter(c, idx, attrs, duration, disconnectedAt)
		}
		return Or(children...).Simplify()
	case OpDuration:
		durOp, durVal := f.DurationOp, f.DurationValue
		return single(idx.All, func(key model.Timestamp) bool {
			d, known := duration(key)
			if !known {
				return durOp == OpGt
			}
			if durOp == OpGt {
				return d > durVal
			}
			return d < durVal
		})
	case OpConnected:
		switch f.ConnectedOp {
		case OpGt:
			return single(idx.All.Slice(f.ConnectedValue.Add(1), model.MaxTimestamp), nil)
		case OpGte:
			return single(idx.All.Slice(f.ConnectedValue, model.MaxTimestamp), nil)
		case OpLt:
			return single(idx.All.Slice(model.MinTimestamp, f.ConnectedValue.Sub(1)), nil)
		case OpLte:
			return single(idx.All.Slice(model.MinTimestamp, f.ConnectedValue), nil)
		}
		return single(nil, nil)
	case OpDisconnected:
		disOp, disVal := f.DisconnectedOp, f.DisconnectedValue
		return single(idx.All, func(key model.Timestamp) bool {
			at := disconnectedAt(key)
			if at == nil {
				return false
			}
			return compareTimestamp(disOp, *at, disVal)
		})
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
