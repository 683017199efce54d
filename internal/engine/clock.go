package engine

import "sync/atomic"

// Clock is the monotonic identity source for active instances.
//
// A message loops, so its id is not unique across time; every traversal
// gets the next value from this clock instead. Values are strictly
// increasing, which is what lets tests assert loop continuation by id.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, the Engine's single-writer design means only one goroutine
// typically calls Next().
type Clock struct {
	seq atomic.Int64
}

// IDSource hands out instance identities. *Clock is the production
// implementation; tests may substitute their own.
type IDSource interface {
	Next() int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
