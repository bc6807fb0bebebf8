package sync

import (
	"sync"
	"time"
)

// StoreEvent announces a committed Entity Store mutation. Collaborators (UI,
// exporters) subscribe instead of polling; this replaces framework-level
// change tracking with an explicit channel.
type StoreEvent struct {
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id,omitempty"`
	At        time.Time `json:"at"`
}

// EventBus fans StoreEvents out to subscribers. Publishing never blocks; a
// subscriber that falls behind misses events rather than stalling the
// reconciler.
type EventBus struct {
	mu   sync.Mutex
	subs map[int]chan StoreEvent
	next int
}

// NewEventBus constructs an EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan StoreEvent)}
}

// Subscribe registers a listener. The returned cancel func must be called to
// release the channel.
func (b *EventBus) Subscribe(buffer int) (<-chan StoreEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan StoreEvent, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with room in its buffer.
func (b *EventBus) Publish(event StoreEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
