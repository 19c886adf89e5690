package index

import (
	"reflect"
	"testing"

	"github.com/embertrace/engine/model"
)

func TestTimestampsBounds(t *testing.T) {
	var ts Timestamps
	for _, k := range []model.Timestamp{10, 20, 30, 40} {
		ts.Insert(k)
	}

	if got := ts.LowerBound(25); got != 2 {
		t.Errorf("LowerBound(25) = %d, want 2", got)
	}
	if got := ts.LowerBound(20); got != 1 {
		t.Errorf("LowerBound(20) = %d, want 1", got)
	}
	if got := ts.UpperBound(20); got != 2 {
		t.Errorf("UpperBound(20) = %d, want 2", got)
	}
	if got := ts.Slice(15, 35); !reflect.DeepEqual(got, Timestamps{20, 30}) {
		t.Errorf("Slice(15,35) = %v, want [20 30]", got)
	}
	if got := ts.Slice(0, model.MaxTimestamp); !reflect.DeepEqual(got, ts) {
		t.Errorf("Slice(open) = %v, want %v", got, ts)
	}
}

func TestInsertSortedRemoveSorted(t *testing.T) {
	var s Timestamps
	s = insertSorted(s, 30)
	s = insertSorted(s, 10)
	s = insertSorted(s, 20)
	if !reflect.DeepEqual(s, Timestamps{10, 20, 30}) {
		t.Fatalf("insertSorted result = %v", s)
	}

	before := s
	s = removeSorted(s, 20)
	if !reflect.DeepEqual(s, Timestamps{10, 30}) {
		t.Fatalf("removeSorted result = %v", s)
	}
	if !reflect.DeepEqual(before, Timestamps{10, 20, 30}) {
		t.Fatalf("removeSorted mutated the original slice: %v", before)
	}

	unchanged := removeSorted(s, 999)
	if !reflect.DeepEqual(unchanged, s) {
		t.Fatalf("removeSorted of missing key changed slice: %v", unchanged)
	}
}
