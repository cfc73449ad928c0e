package api

import (
	"sync"

	"github.com/develove/develove/internal/installer"
)

// eventBus fans installer progress events out to WebSocket subscribers.
// Slow subscribers drop events instead of blocking the bootstrap sequence.
type eventBus struct {
	mu   sync.Mutex
	subs map[chan installer.Event]struct{}
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[chan installer.Event]struct{})}
}

// Publish delivers an event to every subscriber without blocking.
func (b *eventBus) Publish(event installer.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to unsubscribe.
func (b *eventBus) Subscribe() (<-chan installer.Event, func()) {
	ch := make(chan installer.Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}
