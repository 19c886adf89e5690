// Package index holds the timestamp-sorted index structures the query
// planner and search iterator walk: per-level, per-instance, per-name,
// per-ancestor, and per-attribute slices, plus the stratified duration
// index used for span-interval queries.
package index

import (
	"sort"

	"github.com/embertrace/engine/model"
)

// Timestamps is a strictly-ascending, append-only slice of keys. Because it
// only ever grows at the tail, a slice header captured by a reader
// remains a valid, stable view for the lifetime of one query even
// after the writer appends more entries — the writer never mutates or
// reallocates the portion already handed out.
type Timestamps []model.Timestamp

// Insert appends ts, which must be strictly greater than the current last
// element (callers are expected to allocate timestamps monotonically).
func (t *Timestamps) Insert(ts model.Timestamp) {
	*t = append(*t, ts)
}

// LowerBound returns the index of the first element >= ts.
func (t Timestamps) LowerBound(ts model.Timestamp) int {
	return sort.Search(len(t), func(i int) bool { return t[i] >= ts })
}

// UpperBound returns the index of the first element > ts.
func (t Timestamps) UpperBound(ts model.Timestamp) int {
	return sort.Search(len(t), func(i int) bool { return t[i] > ts })
}

// Slice trims to the timestamps within [start, end], inclusive.
func (t Timestamps) Slice(start, end model.Timestamp) Timestamps {
	return t[t.LowerBound(start):t.UpperBound(end)]
}
