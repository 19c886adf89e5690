// Package engine implements the facade ingestion and queries both go
// through, backed by the
// in-memory indexes, ancestor maps, and subscription manager, with a
// durable store as its write-ahead log.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/embertrace/engine/ancestor"
	"github.com/embertrace/engine/filter"
	"github.com/embertrace/engine/index"
	"github.com/embertrace/engine/model"
	"github.com/embertrace/engine/storage"
	"github.com/embertrace/engine/subscription"
)

// DefaultLimit is the record cap applied to a query when the caller does
// not specify one.
const DefaultLimit = 50

// QueryOptions bounds a query: the [Start,End] window, an optional
// pagination cursor (the last key returned to the client), the scan
// direction, and the maximum number of records to return. Limit is a
// pointer so a caller can distinguish "not specified" (nil, defaults to
// DefaultLimit) from an explicit 0, which must yield no records without
// running the search at all.
type QueryOptions struct {
	Start    model.Timestamp
	End      model.Timestamp
	Previous *model.Timestamp
	Order    filter.Direction
	Limit    *int
}

func (o QueryOptions) limit() int {
	if o.Limit == nil {
		return DefaultLimit
	}
	return *o.Limit
}

// Engine is the facade. All mutating operations and every query's snapshot
// setup are serialized through a single writer goroutine draining commands,
// a cooperative scheduler rather than a global mutex.
type Engine struct {
	store  storage.Store
	logger *zap.Logger

	eventIdx    *index.EventIndexes
	spanIdx     *index.SpanIndexes
	instanceIdx *index.InstanceIndexes
	ancestors   *ancestor.Maps
	subs        *subscription.Manager

	instances        map[model.InstanceID]*model.Instance
	instanceKeys     map[model.InstanceID]model.InstanceKey
	spansByKey       map[model.SpanKey]*model.Span
	spanKeysByFullID map[model.FullSpanID]model.SpanKey
	eventsByKey      map[model.EventKey]*model.Event

	lastTimestamp model.Timestamp
	clock         Clock

	commands chan func()
	done     chan struct{}
}

// New constructs an Engine backed by store, rehydrating its in-memory
// indexes and ancestor maps from every previously stored record (cold
// start), then starts the writer goroutine. A nil clock defaults to
// SystemClock.
func New(store storage.Store, logger *zap.Logger, clock Clock) (*Engine, error) {
	if clock == nil {
		clock = SystemClock
	}
	e := &Engine{
		store:            store,
		logger:           logger,
		eventIdx:         index.NewEventIndexes(),
		spanIdx:          index.NewSpanIndexes(),
		instanceIdx:      index.NewInstanceIndexes(),
		ancestors:        ancestor.NewMaps(),
		subs:             subscription.NewManager(),
		instances:        make(map[model.InstanceID]*model.Instance),
		instanceKeys:     make(map[model.InstanceID]model.InstanceKey),
		spansByKey:       make(map[model.SpanKey]*model.Span),
		spanKeysByFullID: make(map[model.FullSpanID]model.SpanKey),
		eventsByKey:      make(map[model.EventKey]*model.Event),
		clock:            clock,
		commands:         make(chan func()),
		done:             make(chan struct{}),
	}

	if err := e.rehydrate(); err != nil {
		return nil, fmt.Errorf("rehydrate engine state: %w", err)
	}

	go e.run()
	return e, nil
}

func (e *Engine) run() {
	for {
		select {
		case cmd := <-e.commands:
			cmd()
		case <-e.done:
			return
		}
	}
}

// Close stops the writer goroutine and closes the underlying store.
func (e *Engine) Close() error {
	close(e.done)
	return e.store.Close()
}

// do runs fn on the writer goroutine and blocks until it completes,
// giving every mutation and every query's snapshot step a single
// consistent ordering.
func (e *Engine) do(fn func()) {
	result := make(chan struct{})
	e.commands <- func() {
		fn()
		close(result)
	}
	<-result
}

// rehydrate replays every stored record, in key order, back through the
// same index-maintenance paths insertion uses.
func (e *Engine) rehydrate() error {
	instances, err := e.store.GetAllInstances()
	if err != nil {
		return err
	}
	for _, inst := range instances {
		e.instances[inst.ID] = inst
		e.instanceKeys[inst.ID] = inst.Key()
		e.instanceIdx.Insert(inst.Key(), inst.Fields)
		if inst.Key() > e.lastTimestamp {
			e.lastTimestamp = inst.Key()
		}
	}

	spans, err := e.store.GetAllSpans()
	if err != nil {
		return err
	}
	for _, span := range spans {
		e.spansByKey[span.Key()] = span
		e.spanKeysByFullID[model.FullSpanID{InstanceID: e.instanceOf(span.InstanceKey), SpanID: span.ID}] = span.Key()
		var parentKey *model.SpanKey
		if span.ParentKey != nil {
			parentKey = span.ParentKey
		}
		e.ancestors.SetSpanParent(span.Key(), parentKey)
		chain := e.ancestors.SpanChain(span.Key())
		resolved := ancestor.ResolveAll(span.Fields, chain, e.spanFields)
		e.spanIdx.Insert(span.Key(), span.InstanceKey, span.Level, span.Name, span.ParentKey == nil, chain, resolved)
		if dur, ok := span.Duration(); ok {
			e.spanIdx.Close(span.Key(), dur)
		}
		if span.Key() > e.lastTimestamp {
			e.lastTimestamp = span.Key()
		}
	}

	events, err := e.store.GetAllEvents()
	if err != nil {
		return err
	}
	for _, ev := range events {
		e.eventsByKey[ev.Key()] = ev
		e.ancestors.SetEventSpan(ev.Key(), ev.SpanKey)
		chain := e.ancestors.EventChain(ev.Key())
		resolved := ancestor.ResolveAll(ev.Fields, chain, e.spanFields)
		e.eventIdx.Insert(ev.Key(), ev.InstanceKey, ev.Level, chain, resolved)
		if ev.Key() > e.lastTimestamp {
			e.lastTimestamp = ev.Key()
		}
	}

	return nil
}

func (e *Engine) instanceOf(key model.InstanceKey) model.InstanceID {
	for id, k := range e.instanceKeys {
		if k == key {
			return id
		}
	}
	return 0
}

func (e *Engine) spanFields(key model.SpanKey) model.Fields {
	if span, ok := e.spansByKey[key]; ok {
		return span.Fields
	}
	return nil
}

// nextTimestamp assigns the record's key: candidate if the caller supplied
// one (a nonzero client-provided timestamp), else the wall clock. Either way,
// a collision with a prior key is broken by incrementing past it rather than
// rejecting the record. Must only be called from within the writer
// goroutine.
func (e *Engine) nextTimestamp(candidate model.Timestamp) model.Timestamp {
	ts := candidate
	if ts == 0 {
		ts = e.clock()
	}
	if ts <= e.lastTimestamp {
		ts = e.lastTimestamp + 1
	}
	e.lastTimestamp = ts
	return ts
}
