package index

import (
	"testing"

	"github.com/embertrace/engine/model"
)

func TestEventIndexesInsert(t *testing.T) {
	idx := NewEventIndexes()
	idx.Insert(10, 1, model.LevelInfo, []model.SpanKey{5}, map[string]string{"user": "alice"})
	idx.Insert(20, 1, model.LevelError, nil, map[string]string{"user": "bob"})

	if len(idx.All) != 2 {
		t.Fatalf("All = %v", idx.All)
	}
	if len(idx.Levels[model.LevelInfo]) != 1 || idx.Levels[model.LevelInfo][0] != 10 {
		t.Errorf("Levels[Info] = %v", idx.Levels[model.LevelInfo])
	}
	if len(idx.Instances[1]) != 2 {
		t.Errorf("Instances[1] = %v", idx.Instances[1])
	}
	if len(idx.Descendents[5]) != 1 || idx.Descendents[5][0] != 10 {
		t.Errorf("Descendents[5] = %v", idx.Descendents[5])
	}
	if len(idx.Attributes["user"]["alice"]) != 1 {
		t.Errorf("Attributes[user][alice] = %v", idx.Attributes["user"]["alice"])
	}
}

func TestSpanIndexesInsertAndClose(t *testing.T) {
	idx := NewSpanIndexes()
	idx.Insert(100, 1, model.LevelInfo, "request", true, nil, map[string]string{"route": "/x"})

	if len(idx.Roots) != 1 {
		t.Errorf("Roots = %v, want the root span", idx.Roots)
	}
	if len(idx.Names["request"]) != 1 {
		t.Errorf("Names[request] = %v", idx.Names["request"])
	}

	bands := idx.Durations.ToStratifiedIndexes()
	if len(bands) != 1 || bands[0].Range.Start != openBandStart {
		t.Fatalf("expected span to start in the open band, got %+v", bands)
	}

	idx.Close(100, 10)
	bands = idx.Durations.ToStratifiedIndexes()
	if len(bands) != 1 || bands[0].Range.Start == openBandStart {
		t.Fatalf("expected span to have migrated out of the open band, got %+v", bands)
	}
}

func TestInstanceIndexesInsert(t *testing.T) {
	idx := NewInstanceIndexes()
	idx.Insert(1, map[string]string{"region": "us"})
	idx.Insert(2, map[string]string{"region": "eu"})

	if len(idx.All) != 2 {
		t.Errorf("All = %v", idx.All)
	}
	if len(idx.Attributes["region"]["us"]) != 1 {
		t.Errorf("Attributes[region][us] = %v", idx.Attributes["region"]["us"])
	}
}
