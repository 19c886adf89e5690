package filter

import (
	"testing"

	"github.com/embertrace/engine/index"
	"github.com/embertrace/engine/model"
)

func TestIndexedFilterSearchSingleAsc(t *testing.T) {
	f := single(index.Timestamps{10, 20, 30}, nil)
	got, ok := f.Search(15, 100, Asc, 0, nil)
	if !ok || got != 20 {
		t.Fatalf("Search = %v, %v, want 20, true", got, ok)
	}
}

func TestIndexedFilterSearchSingleDesc(t *testing.T) {
	f := single(index.Timestamps{10, 20, 30}, nil)
	got, ok := f.Search(25, 0, Desc, 0, nil)
	if !ok || got != 20 {
		t.Fatalf("Search = %v, %v, want 20, true", got, ok)
	}
}

func TestIndexedFilterSearchSingleOutOfBoundFails(t *testing.T) {
	f := single(index.Timestamps{10, 20, 30}, nil)
	if _, ok := f.Search(35, 100, Asc, 0, nil); ok {
		t.Fatal("expected no match past the end of the slice")
	}
}

func TestIndexedFilterSearchResidualSkips(t *testing.T) {
	f := single(index.Timestamps{10, 20, 30}, func(k model.Timestamp) bool { return k != 20 })
	got, ok := f.Search(15, 100, Asc, 0, nil)
	if !ok || got != 30 {
		t.Fatalf("Search = %v, %v, want 30, true (20 rejected by residual)", got, ok)
	}
}

func TestIndexedFilterSearchAndAgreesOnKey(t *testing.T) {
	a := single(index.Timestamps{10, 20, 30}, nil)
	b := single(index.Timestamps{20, 30, 40}, nil)
	f := And(a, b)
	got, ok := f.Search(0, 100, Asc, 0, nil)
	if !ok || got != 20 {
		t.Fatalf("Search = %v, %v, want 20, true", got, ok)
	}
}

func TestIndexedFilterSearchAndNoCommonKeyFails(t *testing.T) {
	a := single(index.Timestamps{10, 30}, nil)
	b := single(index.Timestamps{20, 40}, nil)
	f := And(a, b)
	if _, ok := f.Search(0, 100, Asc, 0, nil); ok {
		t.Fatal("expected no agreement between disjoint slices")
	}
}

func TestIndexedFilterSearchOrFindsExtremum(t *testing.T) {
	a := single(index.Timestamps{30}, nil)
	b := single(index.Timestamps{10, 20}, nil)
	f := Or(a, b)
	got, ok := f.Search(0, 100, Asc, 0, nil)
	if !ok || got != 10 {
		t.Fatalf("Search = %v, %v, want 10, true", got, ok)
	}
}

func TestIndexedFilterEstimateCount(t *testing.T) {
	a := single(index.Timestamps{1, 2, 3}, nil)
	b := single(index.Timestamps{1, 2}, nil)
	if got := And(a, b).EstimateCount(); got != 2 {
		t.Errorf("And EstimateCount = %d, want 2", got)
	}
	if got := Or(a, b).EstimateCount(); got != 5 {
		t.Errorf("Or EstimateCount = %d, want 5", got)
	}
}

func TestIndexedFilterTrimToTimeframeSingle(t *testing.T) {
	f := single(index.Timestamps{10, 20, 30}, nil)
	f.TrimToTimeframe(0, 25)
	if !reflectEqualTS(f.Slice, index.Timestamps{10, 20}) {
		t.Fatalf("trimmed slice = %v, want [10 20]", f.Slice)
	}
}

func TestIndexedFilterTrimToTimeframeStratifiedExtendsLowerBound(t *testing.T) {
	r := index.RangeForBand(index.BandFor(8)) // [8,16)
	f := stratified(index.Timestamps{5, 20, 50}, r, nil)
	// start=30 > Range.End=16, so the lower bound extends back to 30-16=14,
	// dropping the span created at 5 (too early to still be alive)
	// but keeping 20 and 50.
	f.TrimToTimeframe(30, 100)
	if !reflectEqualTS(f.Slice, index.Timestamps{20, 50}) {
		t.Fatalf("trimmed slice = %v, want [20 50]", f.Slice)
	}
}

func reflectEqualTS(a, b index.Timestamps) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
