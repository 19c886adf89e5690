package engine

import (
	"github.com/embertrace/engine/ancestor"
	"github.com/embertrace/engine/filter"
	"github.com/embertrace/engine/metrics"
	"github.com/embertrace/engine/model"
)

// collectKeys drives the search iterator to exhaustion or until opts.limit()
// keys are collected, re-anchoring on opts.Previous per the pagination rule:
// the effective start (Asc) or end (Desc) moves past the previous cursor,
// while opts.Start is preserved as the alive-check reference.
func collectKeys(plan *filter.IndexedFilter, opts QueryOptions, alive filter.AliveCheck) []model.Timestamp {
	start, end := opts.Start, opts.End
	if opts.Previous != nil {
		if opts.Order == filter.Desc {
			end = opts.Previous.Sub(1)
		} else {
			start = opts.Previous.Add(1)
		}
	}

	var out []model.Timestamp
	limit := opts.limit()

	// Span queries also visit spans created before opts.Start; the alive
	// check drops those that closed before it. An Asc page resuming after
	// opts.Previous has already passed them.
	lower := start
	if alive != nil && (opts.Previous == nil || opts.Order == filter.Desc) {
		lower = model.MinTimestamp
	}

	if opts.Order == filter.Desc {
		c := end
		for len(out) < limit {
			k, ok := plan.Search(c, lower, filter.Desc, opts.Start, alive)
			if !ok {
				break
			}
			out = append(out, k)
			c = k.Sub(1)
		}
		return out
	}

	c := lower
	for len(out) < limit {
		k, ok := plan.Search(c, end, filter.Asc, opts.Start, alive)
		if !ok {
			break
		}
		out = append(out, k)
		c = k + 1
	}
	return out
}

// QueryInstance returns the instances matching f within opts.
func (e *Engine) QueryInstance(f *filter.BasicInstanceFilter, opts QueryOptions) ([]model.InstanceView, error) {
	var out []model.InstanceView

	e.do(func() {
		plan := filter.BuildInstanceIndexedFilter(f, e.instanceIdx, e.instanceAttrs, e.instanceDuration, e.instanceDisconnectedAt).
			TrimToTimeframe(opts.Start, opts.End).Optimize()

		for _, key := range collectKeys(plan, opts, nil) {
			inst := e.instanceByKey(key)
			if inst == nil {
				continue
			}
			out = append(out, e.instanceView(inst))
		}
	})

	return out, nil
}

// QuerySpan returns the spans matching f within opts.
func (e *Engine) QuerySpan(f *filter.BasicSpanFilter, opts QueryOptions) ([]model.SpanView, error) {
	var out []model.SpanView

	e.do(func() {
		plan := filter.BuildSpanIndexedFilter(f, e.spanIdx, e.spanAttrsResolved, e.spanDuration, e)
		plan = filter.EnsureStratified(plan, e.spanIdx.Durations)
		plan = plan.TrimToTimeframe(opts.Start, opts.End).Optimize()

		alive := func(key model.Timestamp, queryStart model.Timestamp) bool {
			span := e.spansByKey[key]
			if span == nil {
				return false
			}
			if span.ClosedAt == nil {
				return true
			}
			return *span.ClosedAt >= queryStart
		}

		for _, key := range collectKeys(plan, opts, alive) {
			span := e.spansByKey[key]
			if span == nil {
				continue
			}
			out = append(out, e.spanView(span))
		}
	})

	return out, nil
}

// QueryEvent returns the events matching f within opts.
func (e *Engine) QueryEvent(f *filter.BasicEventFilter, opts QueryOptions) ([]model.EventView, error) {
	var out []model.EventView

	e.do(func() {
		plan := filter.BuildEventIndexedFilter(f, e.eventIdx, e.eventAttrsResolved, e)
		plan = plan.TrimToTimeframe(opts.Start, opts.End).Optimize()

		for _, key := range collectKeys(plan, opts, nil) {
			ev := e.eventsByKey[key]
			if ev == nil {
				continue
			}
			out = append(out, e.eventView(ev))
		}
	})

	return out, nil
}

// QueryEventCount runs the iterator to exhaustion counting yielded keys
// without hydrating records.
func (e *Engine) QueryEventCount(f *filter.BasicEventFilter, opts QueryOptions) (int, error) {
	count := 0

	e.do(func() {
		plan := filter.BuildEventIndexedFilter(f, e.eventIdx, e.eventAttrsResolved, e)
		plan = plan.TrimToTimeframe(opts.Start, opts.End).Optimize()

		c, end := opts.Start, opts.End
		for {
			k, ok := plan.Search(c, end, filter.Asc, opts.Start, nil)
			if !ok {
				break
			}
			count++
			c = k + 1
		}
	})

	return count, nil
}

// QueryStats summarizes the current contents of the engine.
func (e *Engine) QueryStats() model.StatsView {
	var view model.StatsView

	e.do(func() {
		view.TotalSpans = len(e.spanIdx.All)
		view.TotalEvents = len(e.eventIdx.All)
		metrics.IndexedSpans.Set(float64(view.TotalSpans))
		metrics.IndexedEvents.Set(float64(view.TotalEvents))
		if len(e.spanIdx.All) > 0 {
			start := e.spanIdx.All[0]
			end := e.spanIdx.All[len(e.spanIdx.All)-1]
			view.Start = &start
			view.End = &end
		}
	})

	return view
}

func (e *Engine) instanceByKey(key model.InstanceKey) *model.Instance {
	for _, inst := range e.instances {
		if inst.Key() == key {
			return inst
		}
	}
	return nil
}

func (e *Engine) instanceAttrs(key model.Timestamp) map[string]string {
	inst := e.instanceByKey(key)
	if inst == nil {
		return nil
	}
	return inst.Fields
}

func (e *Engine) instanceDuration(key model.Timestamp) (uint64, bool) {
	inst := e.instanceByKey(key)
	if inst == nil {
		return 0, false
	}
	return inst.Duration()
}

func (e *Engine) instanceDisconnectedAt(key model.Timestamp) *model.Timestamp {
	inst := e.instanceByKey(key)
	if inst == nil {
		return nil
	}
	return inst.DisconnectedAt
}

func (e *Engine) spanAttrsResolved(key model.Timestamp) map[string]string {
	span := e.spansByKey[key]
	if span == nil {
		return nil
	}
	chain := e.ancestors.SpanChain(key)
	return ancestor.ResolveAll(span.Fields, chain, e.spanFields)
}

func (e *Engine) spanDuration(key model.Timestamp) (uint64, bool) {
	span := e.spansByKey[key]
	if span == nil {
		return 0, false
	}
	return span.Duration()
}

func (e *Engine) eventAttrsResolved(key model.Timestamp) map[string]string {
	ev := e.eventsByKey[key]
	if ev == nil {
		return nil
	}
	chain := e.ancestors.EventChain(key)
	return ancestor.ResolveAll(ev.Fields, chain, e.spanFields)
}
