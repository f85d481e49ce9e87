package events

import "sync"

const defaultSubscriberBuffer = 64

// Hub fans events out to subscribers. A subscriber that falls behind loses
// events rather than stalling the publisher.
type Hub struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	next    int
	dropped uint64
}

func NewHub() *Hub { return &Hub{subs: make(map[int]chan Event)} }

// Publish delivers e to every subscriber with buffer space.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped++
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func closes the
// channel and must be called exactly once.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
