package engine

import "sync"

// EventType distinguishes trigger kinds.
type EventType int

const (
	// EventLoad replaces the pool with a fetched snapshot.
	EventLoad EventType = iota + 1
	// EventUpsert inserts or replaces one message.
	EventUpsert
	// EventRemove deletes one message and its instances.
	EventRemove
	// EventSpawn schedules a traversal for a message already in the pool.
	EventSpawn
	// EventComplete reports that an instance finished its traversal.
	EventComplete
	// EventResize changes the surface width.
	EventResize
)

func (t EventType) String() string {
	switch t {
	case EventLoad:
		return "load"
	case EventUpsert:
		return "upsert"
	case EventRemove:
		return "remove"
	case EventSpawn:
		return "spawn"
	case EventComplete:
		return "complete"
	case EventResize:
		return "resize"
	default:
		return "unknown"
	}
}

// Event is one trigger for the engine loop. Only the fields relevant to
// Type are set.
type Event struct {
	Type       EventType
	Message    *Message  // upsert
	Messages   []Message // load
	MessageID  string    // remove, spawn
	Force      bool      // spawn
	InstanceID int64     // complete
	Width      float64   // resize
}

// eventQueue is a thread-safe FIFO queue for triggers.
//
// The queue is unbounded: push events, local actions and completion
// timers all enqueue from their own goroutines and must never block on
// the scheduling loop.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Drop the slot's references (message slices) so the backing array
	// does not retain them.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// It is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
