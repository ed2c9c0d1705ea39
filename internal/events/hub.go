package events

import "sync"

// defaultBufferSize is the per-subscriber event buffer. The audit
// logger subscribes with a larger buffer via SubscribeBuffered.
const defaultBufferSize = 64

// Subscription is one subscriber's ordered view of the event stream.
type Subscription struct {
	Events <-chan Event
	Done   <-chan struct{}

	ch     chan Event
	doneCh chan struct{}
}

// Hub broadcasts events from a single producer to any number of
// subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber with the default buffer.
func (h *Hub) Subscribe() *Subscription {
	return h.SubscribeBuffered(defaultBufferSize)
}

// SubscribeBuffered registers a subscriber with a custom buffer size.
func (h *Hub) SubscribeBuffered(size int) *Subscription {
	s := &Subscription{
		ch:     make(chan Event, size),
		doneCh: make(chan struct{}),
	}
	s.Events = s.ch
	s.Done = s.doneCh

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		close(s.doneCh)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes a subscriber and closes its channels.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
	close(s.doneCh)
}

// Publish delivers the event to every subscriber without blocking.
// When a subscriber's buffer is full, its oldest buffered event is
// dropped to make room.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for s := range h.subs {
		select {
		case s.ch <- e:
		default:
			// Buffer full: drop the oldest, then retry once.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- e:
			default:
			}
		}
	}
}

// Close shuts the hub down and closes all subscriber channels.
// Publishing after Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
		close(s.doneCh)
	}
	h.subs = make(map[*Subscription]struct{})
}
