package server

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/danmaku/internal/wire"
)

// hub fans broadcast frames out to event stream subscribers.
//
// Each subscriber has a bounded queue. A broadcast never blocks: a
// subscriber whose queue is full is dropped and its channel closed, which
// ends its stream.
type hub struct {
	mu     sync.Mutex
	buffer int
	subs   map[uuid.UUID]chan wire.Frame
	m      *metrics
}

func newHub(buffer int, m *metrics) *hub {
	return &hub{buffer: buffer, subs: make(map[uuid.UUID]chan wire.Frame), m: m}
}

// Subscribe registers a new subscriber.
func (h *hub) Subscribe() (uuid.UUID, <-chan wire.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.New()
	ch := make(chan wire.Frame, h.buffer)
	h.subs[id] = ch
	h.m.subscribers.Set(float64(len(h.subs)))
	return id, ch
}

// Unsubscribe removes a subscriber. Safe to call after it was dropped.
func (h *hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
		h.m.subscribers.Set(float64(len(h.subs)))
	}
}

// Broadcast queues f for every subscriber.
func (h *hub) Broadcast(f wire.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- f:
		default:
			delete(h.subs, id)
			close(ch)
			h.m.droppedSubs.Inc()
			slog.Warn("dropping slow subscriber", "subscriber", id, "event", f.Event)
		}
	}
	h.m.subscribers.Set(float64(len(h.subs)))
	h.m.broadcasts.WithLabelValues(f.Event).Inc()
}

// Len returns the number of subscribers.
func (h *hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
