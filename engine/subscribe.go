package engine

import (
	"github.com/google/uuid"

	"github.com/embertrace/engine/filter"
	"github.com/embertrace/engine/metrics"
	"github.com/embertrace/engine/subscription"
)

// SubscribeToEvents registers f and returns its id and receive-only queue
// of matching future events.
func (e *Engine) SubscribeToEvents(f *filter.BasicEventFilter) (uuid.UUID, <-chan subscription.Event) {
	var id uuid.UUID
	var queue <-chan subscription.Event

	e.do(func() {
		id, queue = e.subs.Subscribe(f)
		metrics.ActiveSubscriptions.Set(float64(e.subs.Count()))
	})

	return id, queue
}

// UnsubscribeFromEvents removes a subscription and closes its queue.
func (e *Engine) UnsubscribeFromEvents(id uuid.UUID) {
	e.do(func() {
		e.subs.Unsubscribe(id)
		metrics.ActiveSubscriptions.Set(float64(e.subs.Count()))
	})
}
