package queue

import "sync"

// eventBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses events rather than stalling the processor.
const eventBuffer = 16

// EventBus fans completed-request events out to subscribers. Publishing
// never blocks: slow consumers drop.
type EventBus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new listener. The returned cancel func must be
// called to release the subscription; the channel is closed by it.
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer space.
func (b *EventBus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the current subscriber count.
func (b *EventBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
