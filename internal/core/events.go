package core

// events.go delivers state changes as discrete messages rather than shared
// mutable fields. UI layers subscribe; a slow subscriber loses events rather
// than stalling a commit path.

import "sync"

// EventType identifies what changed in the store.
type EventType string

const (
	// EventDatasetCommitted fires after an import transaction commits.
	EventDatasetCommitted EventType = "dataset_committed"
	// EventDatasetDeleted fires after a cascading delete commits.
	// Only the dataset id is populated.
	EventDatasetDeleted EventType = "dataset_deleted"
)

// Event is one committed state change.
type Event struct {
	Type    EventType `json:"type"`
	Dataset Dataset   `json:"dataset"`
}

type eventBus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan Event)}
}

// publish sends ev to every subscriber without blocking.
func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *eventBus) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Subscribe returns a channel of committed state changes and a cancel
// function that must be called when the subscriber goes away.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}
