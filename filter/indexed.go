package filter

import (
	"sort"

	"github.com/embertrace/engine/index"
	"github.com/embertrace/engine/model"
)

// IndexedKind discriminates one node of the compiled query plan.
type IndexedKind int

const (
	KindSingle IndexedKind = iota
	KindStratified
	KindAnd
	KindOr
)

// Direction is the scan order a search proceeds in.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Residual is a per-record check applied after a key survives the indexed
// slice lookup — used whenever a predicate could not be resolved to an
// index lookup alone (an unindexed attribute, or a band that straddles a
// duration bound).
type Residual func(key model.Timestamp) bool

// AliveCheck reports whether a span-keyed record created before queryStart
// was still alive at queryStart (span queries only; always
// nil for event/instance queries).
type AliveCheck func(key model.Timestamp, queryStart model.Timestamp) bool

// IndexedFilter is the compiled query plan: a tree of Single/Stratified
// leaves combined by And/Or, ready for the search iterator.
type IndexedFilter struct {
	Kind     IndexedKind
	Slice    index.Timestamps
	Range    index.DurationRange
	Residual Residual
	Children []*IndexedFilter
}

// single builds a Single leaf with an optional residual.
func single(slice index.Timestamps, residual Residual) *IndexedFilter {
	return &IndexedFilter{Kind: KindSingle, Slice: slice, Residual: residual}
}

// stratified builds a Stratified leaf with an optional residual.
func stratified(slice index.Timestamps, r index.DurationRange, residual Residual) *IndexedFilter {
	return &IndexedFilter{Kind: KindStratified, Slice: slice, Range: r, Residual: residual}
}

// And builds an And node.
func And(children ...*IndexedFilter) *IndexedFilter {
	return &IndexedFilter{Kind: KindAnd, Children: children}
}

// Or builds an Or node.
func Or(children ...*IndexedFilter) *IndexedFilter {
	return &IndexedFilter{Kind: KindOr, Children: children}
}

// Simplify collapses single-child And/Or nodes, per the "simplify" pass
// that follows recursive And/Or construction.
func (f *IndexedFilter) Simplify() *IndexedFilter {
	if f == nil {
		return nil
	}
	switch f.Kind {
	case KindAnd, KindOr:
		for i, c := range f.Children {
			f.Children[i] = c.Simplify()
		}
		if len(f.Children) == 1 {
			return f.Children[0]
		}
		return f
	default:
		return f
	}
}

// EstimateCount returns the maximum possible number of matches: the slice
// length for a leaf, the min over children for And, the sum over children
// for Or.
func (f *IndexedFilter) EstimateCount() int {
	switch f.Kind {
	case KindSingle, KindStratified:
		return len(f.Slice)
	case KindAnd:
		min := -1
		for _, c := range f.Children {
			n := c.EstimateCount()
			if min == -1 || n < min {
				min = n
			}
		}
		if min == -1 {
			return 0
		}
		return min
	case KindOr:
		sum := 0
		for _, c := range f.Children {
			sum += c.EstimateCount()
		}
		return sum
	}
	return 0
}

// Optimize sorts And/Or children by ascending estimate_count so the
// cheapest child is searched first.
func (f *IndexedFilter) Optimize() *IndexedFilter {
	if f == nil {
		return nil
	}
	switch f.Kind {
	case KindAnd, KindOr:
		for _, c := range f.Children {
			c.Optimize()
		}
		sort.SliceStable(f.Children, func(i, j int) bool {
			return f.Children[i].EstimateCount() < f.Children[j].EstimateCount()
		})
	}
	return f
}

// TrimToTimeframe narrows every leaf slice to the query window. A plain
// Single trims only the upper side to end; a Stratified leaf also trims its
// lower side to max(0, start-range.End), since a span ending before start
// could still have been created and alive within up to one band-max-duration
// earlier.
func (f *IndexedFilter) TrimToTimeframe(start, end model.Timestamp) *IndexedFilter {
	switch f.Kind {
	case KindSingle:
		f.Slice = f.Slice.Slice(model.MinTimestamp, end)
	case KindStratified:
		lower := model.MinTimestamp
		if uint64(start) > f.Range.End {
			lower = start.Sub(f.Range.End)
		}
		f.Slice = f.Slice.Slice(lower, end)
	case KindAnd, KindOr:
		for _, c := range f.Children {
			c.TrimToTimeframe(start, end)
		}
	}
	return f
}

// EnsureStratified conjoins an all-bands Stratified wrapper around f if the
// plan contains no Stratified node, so TrimToTimeframe has one to work with.
// Used for span queries only.
func EnsureStratified(f *IndexedFilter, durations *index.DurationIndex) *IndexedFilter {
	if containsStratified(f) {
		return f
	}
	var bandChildren []*IndexedFilter
	for _, b := range durations.ToStratifiedIndexes() {
		bandChildren = append(bandChildren, stratified(b.Index, b.Range, nil))
	}
	if len(bandChildren) == 0 {
		return f
	}
	return And(f, Or(bandChildren...)).Simplify()
}

func containsStratified(f *IndexedFilter) bool {
	switch f.Kind {
	case KindStratified:
		return true
	case KindAnd, KindOr:
		for _, c := range f.Children {
			if containsStratified(c) {
				return true
			}
		}
	}
	return false
}

// Search returns the first key k satisfying the plan with c <= k <= b (Asc)
// or b <= k <= c (Desc), or false if none remains. queryStart is the
// original window start used for the span-alive skip; alive is nil for
// event/instance queries.
func (f *IndexedFilter) Search(c, b model.Timestamp, dir Direction, queryStart model.Timestamp, alive AliveCheck) (model.Timestamp, bool) {
	switch f.Kind {
	case KindSingle, KindStratified:
		return f.searchLeaf(c, b, dir, queryStart, alive)
	case KindAnd:
		return f.searchAnd(c, b, dir, queryStart, alive)
	case KindOr:
		return f.searchOr(c, b, dir, queryStart, alive)
	}
	return 0, false
}

func (f *IndexedFilter) searchLeaf(c, b model.Timestamp, dir Direction, queryStart model.Timestamp, alive AliveCheck) (model.Timestamp, bool) {
	for {
		var idx int
		var ok bool
		var candidate model.Timestamp

		if dir == Asc {
			idx = f.Slice.LowerBound(c)
			if idx >= len(f.Slice) {
				return 0, false
			}
			candidate = f.Slice[idx]
			if candidate > b {
				return 0, false
			}
			f.Slice = f.Slice[idx:]
			ok = true
		} else {
			idx = f.Slice.UpperBound(c) - 1
			if idx < 0 {
				return 0, false
			}
			candidate = f.Slice[idx]
			if candidate < b {
				return 0, false
			}
			f.Slice = f.Slice[:idx+1]
			ok = true
		}
		if !ok {
			return 0, false
		}

		if alive != nil && candidate < queryStart && !alive(candidate, queryStart) {
			if dir == Asc {
				c = candidate + 1
			} else {
				c = candidate.Sub(1)
			}
			continue
		}

		if f.Residual != nil && !f.Residual(candidate) {
			if dir == Asc {
				c = candidate + 1
			} else {
				c = candidate.Sub(1)
			}
			continue
		}

		return candidate, true
	}
}

func (f *IndexedFilter) searchAnd(c, b model.Timestamp, dir Direction, queryStart model.Timestamp, alive AliveCheck) (model.Timestamp, bool) {
	if len(f.Children) == 0 {
		return 0, false
	}
	cur, ok := f.Children[0].Search(c, b, dir, queryStart, alive)
	if !ok {
		return 0, false
	}
	for {
		agreed := true
		for _, child := range f.Children[1:] {
			k, ok := child.Search(cur, cur, dir, queryStart, alive)
			if !ok {
				if dir == Asc {
					cur = cur + 1
				} else {
					cur = cur.Sub(1)
				}
				if cur > b && dir == Asc {
					return 0, false
				}
				if dir == Desc && cur < b {
					return 0, false
				}
				var retryOk bool
				cur, retryOk = f.Children[0].Search(cur, b, dir, queryStart, alive)
				if !retryOk {
					return 0, false
				}
				agreed = false
				break
			}
			if k != cur {
				var retryOk bool
				cur, retryOk = f.Children[0].Search(k, b, dir, queryStart, alive)
				if !retryOk {
					return 0, false
				}
				agreed = false
				break
			}
		}
		if agreed {
			return cur, true
		}
	}
}

func (f *IndexedFilter) searchOr(c, b model.Timestamp, dir Direction, queryStart model.Timestamp, alive AliveCheck) (model.Timestamp, bool) {
	best := b
	found := false
	bestSet := false

	for _, child := range f.Children {
		bound := b
		if bestSet {
			bound = best
		}
		k, ok := child.Search(c, bound, dir, queryStart, alive)
		if !ok {
			continue
		}
		if !bestSet {
			best = k
			bestSet = true
			found = true
			continue
		}
		if (dir == Asc && k < best) || (dir == Desc && k > best) {
			best = k
		}
		found = true
	}
	if !found {
		return 0, false
	}
	return best, true
}
