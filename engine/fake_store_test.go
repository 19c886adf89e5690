package engine

import "github.com/embertrace/engine/model"

// memStore is a minimal in-memory storage.Store used to exercise the engine
// without a real database.
type memStore struct {
	instances  map[model.InstanceKey]*model.Instance
	spans      map[model.SpanKey]*model.Span
	spanEvents map[model.EventKey]*model.SpanEvent
	events     map[model.EventKey]*model.Event
}

func newMemStore() *memStore {
	return &memStore{
		instances:  make(map[model.InstanceKey]*model.Instance),
		spans:      make(map[model.SpanKey]*model.Span),
		spanEvents: make(map[model.EventKey]*model.SpanEvent),
		events:     make(map[model.EventKey]*model.Event),
	}
}

func (m *memStore) InsertInstance(inst *model.Instance) error {
	m.instances[inst.Key()] = inst
	return nil
}

func (m *memStore) InsertSpan(span *model.Span) error {
	m.spans[span.Key()] = span
	return nil
}

func (m *memStore) InsertSpanEvent(ev *model.SpanEvent) error {
	m.spanEvents[ev.Key()] = ev
	return nil
}

func (m *memStore) InsertEvent(ev *model.Event) error {
	m.events[ev.Key()] = ev
	return nil
}

func (m *memStore) GetInstance(at model.Timestamp) (*model.Instance, error) { return m.instances[at], nil }
func (m *memStore) GetSpan(at model.Timestamp) (*model.Span, error)         { return m.spans[at], nil }
func (m *memStore) GetSpanEvent(at model.Timestamp) (*model.SpanEvent, error) {
	return m.spanEvents[at], nil
}
func (m *memStore) GetEvent(at model.Timestamp) (*model.Event, error) { return m.events[at], nil }

func (m *memStore) GetAllInstances() ([]*model.Instance, error) {
	out := make([]*model.Instance, 0, len(m.instances))
	for _, v := range m.instances {
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) GetAllSpans() ([]*model.Span, error) {
	out := make([]*model.Span, 0, len(m.spans))
	for _, v := range m.spans {
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) GetAllSpanEvents() ([]*model.SpanEvent, error) {
	out := make([]*model.SpanEvent, 0, len(m.spanEvents))
	for _, v := range m.spanEvents {
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) GetAllEvents() ([]*model.Event, error) {
	out := make([]*model.Event, 0, len(m.events))
	for _, v := range m.events {
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) UpdateInstanceDisconnected(at, disconnectedAt model.Timestamp) error {
	if inst, ok := m.instances[at]; ok {
		inst.DisconnectedAt = &disconnectedAt
	}
	return nil
}

func (m *memStore) UpdateSpanClosed(at, closedAt model.Timestamp) error {
	if span, ok := m.spans[at]; ok {
		span.ClosedAt = &closedAt
	}
	return nil
}

func (m *memStore) UpdateSpanFields(at model.Timestamp, merged model.Fields) error {
	if span, ok := m.spans[at]; ok {
		span.Fields = merged
	}
	return nil
}

func (m *memStore) Close() error { return nil }

// fakeClock hands out sequential timestamps, avoiding a real-wall-clock
// dependency in tests.
func fakeClock() func() model.Timestamp {
	var n model.Timestamp
	return func() model.Timestamp {
		n++
		return n
	}
}
