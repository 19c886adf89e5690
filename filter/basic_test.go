package filter

import (
	"testing"

	"github.com/embertrace/engine/model"
)

func noChain(model.FullSpanID) bool { return false }

func TestParseEventFilterLevelGteLowersToOr(t *testing.T) {
	f, errs := ParseEventFilter("#level:INFO+")
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if f.Op != OpOr {
		t.Fatalf("expected Or, got %v", f.Op)
	}
	if len(f.Children) != int(model.LevelError-model.LevelInfo)+1 {
		t.Fatalf("expected one child per level from Info to Error, got %d", len(f.Children))
	}

	if !f.Matches(1, model.LevelWarn, nil, noChain) {
		t.Error("Warn should match level:INFO+")
	}
	if f.Matches(1, model.LevelDebug, nil, noChain) {
		t.Error("Debug should not match level:INFO+")
	}
}

func TestParseEventFilterAttribute(t *testing.T) {
	f, errs := ParseEventFilter("@user:alice")
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	attrs := map[string]string{"user": "alice"}
	if !f.Matches(1, model.LevelInfo, attrs, noChain) {
		t.Error("expected attribute match for alice")
	}
	attrs["user"] = "bob"
	if f.Matches(1, model.LevelInfo, attrs, noChain) {
		t.Error("did not expect match for bob")
	}
}

func TestParseEventFilterInstance(t *testing.T) {
	f, errs := ParseEventFilter("#instance:42")
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !f.Matches(42, model.LevelInfo, nil, noChain) {
		t.Error("expected instance 42 to match")
	}
	if f.Matches(7, model.LevelInfo, nil, noChain) {
		t.Error("did not expect instance 7 to match")
	}
}

func TestParseEventFilterInvalidInstanceValue(t *testing.T) {
	_, errs := ParseEventFilter("#instance:not-a-number")
	if len(errs) != 1 || errs[0].Message != "InvalidInstanceValue" {
		t.Fatalf("errs = %v, want one InvalidInstanceValue", errs)
	}
}

func TestParseEventFilterStackUsesChain(t *testing.T) {
	f, errs := ParseEventFilter("#stack:5-10")
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := model.FullSpanID{InstanceID: 5, SpanID: 10}
	chain := func(id model.FullSpanID) bool { return id == want }
	if !f.Matches(5, model.LevelInfo, nil, chain) {
		t.Error("expected stack match via chain callback")
	}
}

func TestParseEventFilterMultipleTermsAreAnded(t *testing.T) {
	f, errs := ParseEventFilter("#level:ERROR @user:alice")
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	attrs := map[string]string{"user": "alice"}
	if !f.Matches(1, model.LevelError, attrs, noChain) {
		t.Error("expected both terms to match")
	}
	if f.Matches(1, model.LevelInfo, attrs, noChain) {
		t.Error("wrong level should fail the And")
	}
}

func TestParseEventFilterInvalidLevelValue(t *testing.T) {
	_, errs := ParseEventFilter("#level:bogus")
	if len(errs) != 1 || errs[0].Message != "InvalidLevelValue" {
		t.Fatalf("errs = %v, want one InvalidLevelValue", errs)
	}
}

func TestParseEventFilterInvalidAttributeOperator(t *testing.T) {
	_, errs := ParseEventFilter("@user:>alice")
	if len(errs) != 1 || errs[0].Message != "InvalidAttributeOperator" {
		t.Fatalf("errs = %v, want one InvalidAttributeOperator", errs)
	}
}

func TestParseEventFilterEmptyTextMatchesEverything(t *testing.T) {
	f, errs := ParseEventFilter("")
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !f.Matches(1, model.LevelTrace, nil, noChain) {
		t.Error("empty filter should match everything")
	}
}
