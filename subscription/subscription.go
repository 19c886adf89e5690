// Package subscription implements the live-event subscription manager:
// callers register a filter and receive a bounded channel of matching
// events in ingestion order, with oldest-event-drop on overflow.
package subscription

import (
	"sync"

	"github.com/google/uuid"

	"github.com/embertrace/engine/filter"
	"github.com/embertrace/engine/model"
)

// QueueCapacity bounds each subscriber's channel. A slow consumer falls
// behind rather than blocking the writer path; once full, the oldest
// not-yet-consumed event is dropped to make room for the new one.
const QueueCapacity = 256

// Event is what a subscriber receives: the ingested event plus the
// resolved attribute view the filter was evaluated against.
type Event struct {
	Record model.Event
	Attrs  map[string]string
}

type subscriber struct {
	id     uuid.UUID
	filter *filter.BasicEventFilter
	queue  chan Event
}

// Manager holds every live subscription. It is owned by the engine's
// writer path; Notify is called once per ingested event while reads
// (Subscribe/Unsubscribe) may come from any goroutine serialized through
// the engine's command channel.
type Manager struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*subscriber
}

// NewManager returns an empty subscription manager.
func NewManager() *Manager {
	return &Manager{subs: make(map[uuid.UUID]*subscriber)}
}

// Subscribe registers filter and returns its id and receive-only queue.
func (m *Manager) Subscribe(f *filter.BasicEventFilter) (uuid.UUID, <-chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	sub := &subscriber{id: id, filter: f, queue: make(chan Event, QueueCapacity)}
	m.subs[id] = sub
	return id, sub.queue
}

// Unsubscribe removes a subscription and closes its queue. Unsubscribing an
// unknown id is a no-op.
func (m *Manager) Unsubscribe(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[id]
	if !ok {
		return
	}
	delete(m.subs, id)
	close(sub.queue)
}

// Notify evaluates every subscription's filter against a newly ingested
// event and pushes matches onto their queues, dropping the oldest queued
// event first when a queue is full.
func (m *Manager) Notify(instanceID model.InstanceID, level model.Level, attrs map[string]string, inStack func(model.FullSpanID) bool, record model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs {
		if !sub.filter.Matches(instanceID, level, attrs, inStack) {
			continue
		}
		push(sub.queue, Event{Record: record, Attrs: attrs})
	}
}

// push enqueues ev, dropping the oldest queued element first if the queue
// is at capacity, so delivery never blocks the writer path.
func push(queue chan Event, ev Event) {
	for {
		select {
		case queue <- ev:
			return
		default:
			select {
			case <-queue:
			default:
			}
		}
	}
}

// Count returns the number of live subscriptions, for metrics.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
