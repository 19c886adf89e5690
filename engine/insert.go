package engine

import (
	"fmt"

	"github.com/embertrace/engine/ancestor"
	"github.com/embertrace/engine/model"
)

// InsertError wraps a failure to persist a record, always naming the
// storage operation that failed.
type InsertError struct {
	Op  string
	Err error
}

func (e *InsertError) Error() string { return fmt.Sprintf("insert %s: %v", e.Op, e.Err) }
func (e *InsertError) Unwrap() error { return e.Err }

// InsertInstance records a newly connected client, assigning
// connected_at = now().
func (e *Engine) InsertInstance(new model.NewInstance) (model.InstanceKey, error) {
	var key model.InstanceKey
	var insertErr error

	e.do(func() {
		key = e.nextTimestamp(0)
		inst := &model.Instance{ID: new.ID, ConnectedAt: key, Fields: new.Fields.Clone()}

		if err := e.store.InsertInstance(inst); err != nil {
			insertErr = &InsertError{Op: "instance", Err: err}
			return
		}

		e.instances[inst.ID] = inst
		e.instanceKeys[inst.ID] = key
		e.instanceIdx.Insert(key, inst.Fields)
	})

	return key, insertErr
}

// DisconnectInstance marks an instance disconnected at now(). Disconnecting
// an unknown instance id is a no-op, per "queries never fail because an id
// is unknown" extended to mutations that reference one.
func (e *Engine) DisconnectInstance(id model.InstanceID) error {
	var insertErr error

	e.do(func() {
		inst, ok := e.instances[id]
		if !ok {
			return
		}
		ts := e.nextTimestamp(0)
		inst.DisconnectedAt = &ts

		if err := e.store.UpdateInstanceDisconnected(inst.Key(), ts); err != nil {
			insertErr = &InsertError{Op: "instance_disconnected", Err: err}
		}
	})

	return insertErr
}

// InsertSpanEvent dispatches by kind: Create builds and stores a new Span,
// updates every span index, and initializes its ancestor chain. Update
// merges fields into the span. Close sets closed_at and re-bands the span
// in the duration index. Enter/Exit are stored as events only; Follows is
// stored only (the source tracks causal links but does not index them).
func (e *Engine) InsertSpanEvent(new model.NewSpanEvent) error {
	var insertErr error

	e.do(func() {
		ts := e.nextTimestamp(new.Timestamp)

		ev := &model.SpanEvent{
			InstanceKey: new.InstanceKey,
			Timestamp:   ts,
			Kind:        new.Kind,
		}

		switch new.Kind {
		case model.SpanEventCreate:
			e.handleCreate(new, ts, ev)
		case model.SpanEventUpdate:
			e.handleUpdate(new, ev)
		case model.SpanEventFollows:
			if new.Follows != nil {
				followsID := model.FullSpanID{InstanceID: e.instanceOf(new.InstanceKey), SpanID: new.Follows.Follows}
				if key, ok := e.spanKeysByFullID[followsID]; ok {
					ev.Follows = &key
				}
			}
		case model.SpanEventExit, model.SpanEventEnter:
			// stored in the event log only, not indexed further.
		case model.SpanEventClose:
			e.handleClose(new, ts)
		}

		if err := e.store.InsertSpanEvent(ev); err != nil {
			insertErr = &InsertError{Op: "span_event", Err: err}
		}
	})

	return insertErr
}

func (e *Engine) handleCreate(new model.NewSpanEvent, ts model.Timestamp, ev *model.SpanEvent) {
	if new.Create == nil {
		return
	}
	c := new.Create

	var parentKey *model.SpanKey
	if c.ParentID != nil {
		fullID := model.FullSpanID{InstanceID: e.instanceOf(new.InstanceKey), SpanID: *c.ParentID}
		if key, ok := e.spanKeysByFullID[fullID]; ok {
			parentKey = &key
		}
	}

	span := &model.Span{
		InstanceKey: new.InstanceKey,
		ID:          new.SpanID,
		CreatedAt:   ts,
		ParentKey:   parentKey,
		Target:      c.Target,
		Name:        c.Name,
		Level:       model.Level(c.Level),
		FileName:    c.FileName,
		FileLine:    c.FileLine,
		Fields:      c.Fields.Clone(),
	}

	e.spansByKey[span.Key()] = span
	e.spanKeysByFullID[model.FullSpanID{InstanceID: e.instanceOf(new.InstanceKey), SpanID: new.SpanID}] = span.Key()

	e.ancestors.SetSpanParent(span.Key(), parentKey)
	chain := e.ancestors.SpanChain(span.Key())
	resolved := ancestor.ResolveAll(span.Fields, chain, e.spanFields)

	e.spanIdx.Insert(span.Key(), span.InstanceKey, span.Level, span.Name, parentKey == nil, chain, resolved)

	if err := e.store.InsertSpan(span); err != nil {
		e.logger.Warn("failed to persist span", fieldErr(err))
	}

	ev.Create = &model.CreateSpanEvent{
		ParentKey: parentKey,
		Target:    c.Target,
		Name:      c.Name,
		Level:     span.Level,
		FileName:  c.FileName,
		FileLine:  c.FileLine,
		Fields:    span.Fields,
	}
	ev.SpanKey = span.Key()
}

func (e *Engine) handleUpdate(new model.NewSpanEvent, ev *model.SpanEvent) {
	fullID := model.FullSpanID{InstanceID: e.instanceOf(new.InstanceKey), SpanID: new.SpanID}
	key, ok := e.spanKeysByFullID[fullID]
	if !ok {
		// Update arriving before its span's Create: the source silently
		// skips the merge, and this preserves that behavior.
		return
	}
	span := e.spansByKey[key]
	if span == nil || new.Update == nil {
		return
	}

	if span.Fields == nil {
		span.Fields = make(model.Fields)
	}
	for name, value := range new.Update.Fields {
		span.Fields[name] = value
		e.spanIdx.IndexAttribute(key, name, value)
	}

	if err := e.store.UpdateSpanFields(key, span.Fields); err != nil {
		e.logger.Warn("failed to persist span field update", fieldErr(err))
	}

	ev.SpanKey = key
	ev.Update = &model.UpdateSpanEvent{Fields: new.Update.Fields}
}

func (e *Engine) handleClose(new model.NewSpanEvent, ts model.Timestamp) {
	fullID := model.FullSpanID{InstanceID: e.instanceOf(new.InstanceKey), SpanID: new.SpanID}
	key, ok := e.spanKeysByFullID[fullID]
	if !ok {
		return
	}
	span := e.spansByKey[key]
	if span == nil {
		return
	}

	span.ClosedAt = &ts
	duration, _ := span.Duration()
	e.spanIdx.Close(key, duration)

	if err := e.store.UpdateSpanClosed(key, ts); err != nil {
		e.logger.Warn("failed to persist span close", fieldErr(err))
	}
}

// InsertEvent stores a point-in-time log record, indexes it, and evaluates
// every live subscription against it.
func (e *Engine) InsertEvent(new model.NewEvent) error {
	var insertErr error

	e.do(func() {
		ts := e.nextTimestamp(new.Timestamp)

		var spanKey *model.SpanKey
		if new.SpanID != nil {
			fullID := model.FullSpanID{InstanceID: e.instanceOf(new.InstanceKey), SpanID: *new.SpanID}
			if key, ok := e.spanKeysByFullID[fullID]; ok {
				spanKey = &key
			}
		}

		rec := &model.Event{
			InstanceKey: new.InstanceKey,
			Timestamp:   ts,
			SpanKey:     spanKey,
			Name:        new.Name,
			Target:      new.Target,
			Level:       model.Level(new.Level),
			FileName:    new.FileName,
			FileLine:    new.FileLine,
			Fields:      new.Fields.Clone(),
		}

		e.eventsByKey[rec.Key()] = rec
		e.ancestors.SetEventSpan(rec.Key(), spanKey)
		chain := e.ancestors.EventChain(rec.Key())
		resolved := ancestor.ResolveAll(rec.Fields, chain, e.spanFields)

		e.eventIdx.Insert(rec.Key(), rec.InstanceKey, rec.Level, chain, resolved)

		if err := e.store.InsertEvent(rec); err != nil {
			insertErr = &InsertError{Op: "event", Err: err}
			return
		}

		instanceID := e.instanceOf(rec.InstanceKey)
		e.subs.Notify(instanceID, rec.Level, resolved, func(stack model.FullSpanID) bool {
			stackKey, ok := e.spanKeysByFullID[stack]
			return ok && chain.HasAncestor(stackKey)
		}, *rec)
	})

	return insertErr
}
