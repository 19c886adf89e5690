package ancestor

import (
	"reflect"
	"testing"

	"github.com/embertrace/engine/model"
)

func TestChainHasAncestor(t *testing.T) {
	c := Chain{10, 20, 30}
	if !c.HasAncestor(20) {
		t.Error("HasAncestor(20) = false, want true")
	}
	if c.HasAncestor(99) {
		t.Error("HasAncestor(99) = true, want false")
	}
}

func TestMapsSpanChainBuildsInnermostFirst(t *testing.T) {
	m := NewMaps()
	m.SetSpanParent(1, nil)
	p := model.SpanKey(1)
	m.SetSpanParent(2, &p)
	p2 := model.SpanKey(2)
	m.SetSpanParent(3, &p2)

	got := m.SpanChain(3)
	want := Chain{2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SpanChain(3) = %v, want %v", got, want)
	}
}

func TestMapsEventChain(t *testing.T) {
	m := NewMaps()
	m.SetSpanParent(1, nil)
	p := model.SpanKey(1)
	m.SetSpanParent(2, &p)

	s := model.SpanKey(2)
	m.SetEventSpan(100, &s)
	got := m.EventChain(100)
	want := Chain{2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EventChain = %v, want %v", got, want)
	}

	m.SetEventSpan(101, nil)
	if got := m.EventChain(101); got != nil {
		t.Fatalf("EventChain(no span) = %v, want nil", got)
	}
}

func TestResolveOwnFieldWins(t *testing.T) {
	spanFields := func(k model.SpanKey) model.Fields {
		if k == 1 {
			return model.Fields{"route": "/parent", "region": "us"}
		}
		return nil
	}
	v, ok := Resolve("route", model.Fields{"route": "/own"}, Chain{1}, spanFields)
	if !ok || v != "/own" {
		t.Fatalf("Resolve = %v, %v, want /own, true", v, ok)
	}
}

func TestResolveInheritsFromClosestAncestor(t *testing.T) {
	spanFields := func(k model.SpanKey) model.Fields {
		switch k {
		case 1:
			return model.Fields{"region": "us-inner"}
		case 2:
			return model.Fields{"region": "us-outer", "tier": "free"}
		}
		return nil
	}
	v, ok := Resolve("region", model.Fields{}, Chain{1, 2}, spanFields)
	if !ok || v != "us-inner" {
		t.Fatalf("Resolve(region) = %v, %v, want us-inner, true", v, ok)
	}
	v, ok = Resolve("tier", model.Fields{}, Chain{1, 2}, spanFields)
	if !ok || v != "free" {
		t.Fatalf("Resolve(tier) = %v, %v, want free, true", v, ok)
	}
	if _, ok := Resolve("missing", model.Fields{}, Chain{1, 2}, spanFields); ok {
		t.Fatal("Resolve(missing) should fail")
	}
}

func TestResolveAllOwnShadowsAncestor(t *testing.T) {
	spanFields := func(k model.SpanKey) model.Fields {
		if k == 1 {
			return model.Fields{"route": "/parent", "region": "us"}
		}
		return nil
	}
	got := ResolveAll(model.Fields{"route": "/own"}, Chain{1}, spanFields)
	want := map[string]string{"route": "/own", "region": "us"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolveAll = %v, want %v", got, want)
	}
}
