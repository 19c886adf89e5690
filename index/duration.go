package index

import (
	"math/bits"
	"sort"

	"github.com/embertrace/engine/model"
)

// DurationRange is a half-open microsecond interval [Start, End).
type DurationRange struct {
	Start uint64
	End   uint64
}

// openBandStart is chosen far above any duration a real span will ever
// accrue before closing, so a still-open span is treated as having
// effectively infinite duration: it satisfies every "duration > m" filter
// and fails every "duration < m" filter.
const openBandStart = uint64(1) << 62

// BandFor returns the stratified band index containing the given duration:
// band 0 covers [0, 2) and band k > 0 covers [2^k, 2^(k+1)).
func BandFor(duration uint64) int {
	if duration == 0 {
		return 0
	}
	return bits.Len64(duration) - 1
}

// RangeForBand returns the range for band k: [0, 2) for band 0, else
// [2^k, 2^(k+1)).
func RangeForBand(k int) DurationRange {
	if k == 0 {
		return DurationRange{Start: 0, End: 2}
	}
	return DurationRange{Start: uint64(1) << uint(k), End: uint64(1) << uint(k+1)}
}

// BandSlice pairs a stratified slice of span keys with the duration range it
// represents, the unit the planner and search iterator trim and skip by.
type BandSlice struct {
	Index Timestamps
	Range DurationRange
}

// DurationIndex is the stratified duration index for spans. Closed spans
// are partitioned into log2 bands by their final duration;
// spans still open are kept in a dedicated band treated as infinite
// duration until they close, at which point they migrate to their real
// band.
type DurationIndex struct {
	bands map[int]Timestamps
	open  Timestamps
}

// NewDurationIndex returns an empty stratified duration index.
func NewDurationIndex() *DurationIndex {
	return &DurationIndex{bands: make(map[int]Timestamps)}
}

// InsertOpen records a newly created, not-yet-closed span. Spans are created
// in increasing timestamp order, so this is a plain append.
func (d *DurationIndex) InsertOpen(key model.Timestamp) {
	d.open.Insert(key)
}

// Close migrates key from the open band to the band matching its final
// duration. It never mutates a slice in place — every change allocates a
// fresh backing array — so a query already holding a borrowed view of the
// old band sees a stable (if now slightly stale) snapshot.
func (d *DurationIndex) Close(key model.Timestamp, duration uint64) {
	d.open = removeSorted(d.open, key)

	band := BandFor(duration)
	d.bands[band] = insertSorted(d.bands[band], key)
}

// ToStratifiedIndexes returns one (slice, range) pair per non-empty band,
// plus the open band (range starting at openBandStart) when any span is
// still open.
func (d *DurationIndex) ToStratifiedIndexes() []BandSlice {
	out := make([]BandSlice, 0, len(d.bands)+1)

	bandKeys := make([]int, 0, len(d.bands))
	for k := range d.bands {
		bandKeys = append(bandKeys, k)
	}
	sort.Ints(bandKeys)

	for _, k := range bandKeys {
		out = append(out, BandSlice{Index: d.bands[k], Range: RangeForBand(k)})
	}

	if len(d.open) > 0 {
		out = append(out, BandSlice{
			Index: d.open,
			Range: DurationRange{Start: openBandStart, End: ^uint64(0)},
		})
	}

	return out
}

// MaxBandDuration returns the largest band-end duration across all bands
// currently populated (the maximum uint64 while any span is open): how far
// before a query window a span could have been created and still be alive
// in it.
func (d *DurationIndex) MaxBandDuration() uint64 {
	max := uint64(0)
	for k := range d.bands {
		if r := RangeForBand(k).End; r > max {
			max = r
		}
	}
	if len(d.open) > 0 {
		max = ^uint64(0)
	}
	return max
}

func insertSorted(s Timestamps, key model.Timestamp) Timestamps {
	idx := s.LowerBound(key)
	out := make(Timestamps, len(s)+1)
	copy(out, s[:idx])
	out[idx] = key
	copy(out[idx+1:], s[idx:])
	return out
}

func removeSorted(s Timestamps, key model.Timestamp) Timestamps {
	idx := s.LowerBound(key)
	if idx >= len(s) || s[idx] != key {
		return s
	}
	out := make(Timestamps, len(s)-1)
	copy(out, s[:idx])
	copy(out[idx:], s[idx+1:])
	return out
}
