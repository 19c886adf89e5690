// Package storage defines the durable-store contract the engine depends on,
// and is otherwise agnostic to its backing implementation.
package storage

import "github.com/embertrace/engine/model"

// Store is the only contract the engine requires of a durable store. Get*
// methods are used for point lookups (e.g. cold rehydration of a single
// record); GetAll* are used only once, on startup, to rebuild the
// in-memory indexes and ancestor maps. Insert* must be idempotent on
// primary key so a replayed insert during crash recovery is harmless.
type Store interface {
	InsertInstance(inst *model.Instance) error
	InsertSpan(span *model.Span) error
	InsertSpanEvent(ev *model.SpanEvent) error
	InsertEvent(ev *model.Event) error

	GetInstance(at model.Timestamp) (*model.Instance, error)
	GetSpan(at model.Timestamp) (*model.Span, error)
	GetSpanEvent(at model.Timestamp) (*model.SpanEvent, error)
	GetEvent(at model.Timestamp) (*model.Event, error)

	GetAllInstances() ([]*model.Instance, error)
	GetAllSpans() ([]*model.Span, error)
	GetAllSpanEvents() ([]*model.SpanEvent, error)
	GetAllEvents() ([]*model.Event, error)

	UpdateInstanceDisconnected(at, disconnectedAt model.Timestamp) error
	UpdateSpanClosed(at, closedAt model.Timestamp) error
	UpdateSpanFields(at model.Timestamp, merged model.Fields) error

	Close() error
}
