// Package ancestor resolves the enclosing-span chain for spans and events,
// and the ancestor-attribute lookup ("first enclosing span whose fields
// contain the name wins") that lets attribute filters transparently inherit
// from parent spans.
package ancestor

import "github.com/embertrace/engine/model"

// Chain lists the span keys enclosing a span or event, innermost first. A
// span's chain is its parent, its parent's parent, and so on; an event's
// chain begins with the span it was recorded in.
type Chain []model.SpanKey

// HasAncestor reports whether key appears anywhere in the chain.
func (c Chain) HasAncestor(key model.SpanKey) bool {
	for _, anc := range c {
		if anc == key {
			return true
		}
	}
	return false
}

// SpanFieldsFunc looks up the current fields of a span by key. The engine
// facade supplies this backed by its span storage so that attribute
// resolution always sees the latest merged fields, including those added by
// an Update span event after creation.
type SpanFieldsFunc func(model.SpanKey) model.Fields

// Resolve finds the effective value of attribute name for a record with its
// own fields ownFields and ancestor chain, walking from innermost to
// outermost. The record's own fields are checked first.
func Resolve(name string, ownFields model.Fields, chain Chain, spanFields SpanFieldsFunc) (string, bool) {
	if v, ok := ownFields[name]; ok {
		return v, true
	}
	for _, anc := range chain {
		if v, ok := spanFields(anc)[name]; ok {
			return v, true
		}
	}
	return "", false
}

// ResolveAll returns every attribute name visible to a record (its own plus
// every inherited one not shadowed by a closer value), used to index a
// record's effective attributes and to check filters against them.
func ResolveAll(ownFields model.Fields, chain Chain, spanFields SpanFieldsFunc) map[string]string {
	out := make(map[string]string, len(ownFields))
	for _, anc := range chain {
		for k, v := range spanFields(anc) {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	for k, v := range ownFields {
		out[k] = v
	}
	return out
}

// Maps tracks the resolved ancestor chain for every span and event the
// engine has ingested. It is owned exclusively by the engine's writer path
// and read freely by concurrent queries; callers must ensure writes are
// serialized (the facade's cooperative scheduler does this).
type Maps struct {
	spans  map[model.SpanKey]Chain
	events map[model.EventKey]Chain
}

// NewMaps returns an empty set of ancestor maps.
func NewMaps() *Maps {
	return &Maps{
		spans:  make(map[model.SpanKey]Chain),
		events: make(map[model.EventKey]Chain),
	}
}

// SetSpanParent records key's chain as parentKey followed by parentKey's own
// chain. A span's parent always has a strictly smaller CreatedAt, so this
// can never cycle.
func (m *Maps) SetSpanParent(key model.SpanKey, parentKey *model.SpanKey) {
	if parentKey == nil {
		m.spans[key] = nil
		return
	}
	parentChain := m.spans[*parentKey]
	chain := make(Chain, 0, len(parentChain)+1)
	chain = append(chain, *parentKey)
	chain = append(chain, parentChain...)
	m.spans[key] = chain
}

// SetEventSpan records key's chain as spanKey followed by spanKey's own
// chain (empty if the event has no enclosing span).
func (m *Maps) SetEventSpan(key model.EventKey, spanKey *model.SpanKey) {
	if spanKey == nil {
		m.events[key] = nil
		return
	}
	spanChain := m.spans[*spanKey]
	chain := make(Chain, 0, len(spanChain)+1)
	chain = append(chain, *spanKey)
	chain = append(chain, spanChain...)
	m.events[key] = chain
}

// SpanChain returns the ancestor chain previously recorded for a span.
func (m *Maps) SpanChain(key model.SpanKey) Chain { return m.spans[key] }

// EventChain returns the ancestor chain previously recorded for an event.
func (m *Maps) EventChain(key model.EventKey) Chain { return m.events[key] }
