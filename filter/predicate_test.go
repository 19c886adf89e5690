package filter

import "testing"

func TestParsePredicateTextPrefixes(t *testing.T) {
	p := ParsePredicateText("#level:info")
	if p.PropertyKind == nil || *p.PropertyKind != Inherent {
		t.Fatalf("PropertyKind = %v, want Inherent", p.PropertyKind)
	}
	if p.Property != "level" || p.Value != "info" {
		t.Fatalf("Property/Value = %q/%q", p.Property, p.Value)
	}

	p = ParsePredicateText("@user:alice")
	if p.PropertyKind == nil || *p.PropertyKind != Attribute {
		t.Fatalf("PropertyKind = %v, want Attribute", p.PropertyKind)
	}
	if p.Property != "user" || p.Value != "alice" {
		t.Fatalf("Property/Value = %q/%q", p.Property, p.Value)
	}

	p = ParsePredicateText("user:alice")
	if p.PropertyKind != nil {
		t.Fatalf("PropertyKind = %v, want nil (absent)", p.PropertyKind)
	}
}

func TestParsePredicateTextLevelPlusOperator(t *testing.T) {
	p := ParsePredicateText("#level:info+")
	if p.ValueOperator == nil || *p.ValueOperator != OpGte {
		t.Fatalf("ValueOperator = %v, want Gte", p.ValueOperator)
	}
	if p.Value != "info" {
		t.Fatalf("Value = %q, want info", p.Value)
	}
}

func TestParsePredicateTextComparisonOperators(t *testing.T) {
	cases := []struct {
		term string
		op   ValueOperator
		val  string
	}{
		{"#duration:>100", OpGt, "100"},
		{"#duration:<100", OpLt, "100"},
		{"#created:>=5", OpGte, "5"},
		{"#created:<=5", OpLte, "5"},
	}
	for _, c := range cases {
		p := ParsePredicateText(c.term)
		if p.ValueOperator == nil || *p.ValueOperator != c.op {
			t.Errorf("%q: ValueOperator = %v, want %v", c.term, p.ValueOperator, c.op)
		}
		if p.Value != c.val {
			t.Errorf("%q: Value = %q, want %q", c.term, p.Value, c.val)
		}
	}
}

func TestResolveKindDefaultsToReserved(t *testing.T) {
	reserved := map[string]bool{"level": true}
	p := ParsePredicateText("level:info")
	if resolveKind(p, reserved) != Inherent {
		t.Error("unprefixed reserved property should resolve to Inherent")
	}
	p = ParsePredicateText("user:alice")
	if resolveKind(p, reserved) != Attribute {
		t.Error("unprefixed non-reserved property should resolve to Attribute")
	}
}

func TestRenderPredicateRoundTrip(t *testing.T) {
	inherent := Inherent
	gte := OpGte
	p := FilterPredicate{PropertyKind: &inherent, Property: "level", ValueOperator: &gte, Value: "info"}
	if got := RenderPredicate(p); got != "#level:info+" {
		t.Fatalf("RenderPredicate = %q, want #level:info+", got)
	}

	gt := OpGt
	p = FilterPredicate{PropertyKind: &inherent, Property: "duration", ValueOperator: &gt, Value: "100"}
	if got := RenderPredicate(p); got != "#duration:>100" {
		t.Fatalf("RenderPredicate = %q, want #duration:>100", got)
	}
}
