package engine

import "time"

// Lanes is the lane allocator: one nextFreeAt timestamp per lane.
//
// nextFreeAt is the earliest time a new traversal may start in the lane
// without catching up to the previous one. It only moves forward, except
// through Reset.
//
// Lanes is not safe for concurrent use; the engine owns it.
type Lanes struct {
	nextFreeAt []time.Time
}

// NewLanes creates n lanes, all free at now.
func NewLanes(n int, now time.Time) *Lanes {
	l := &Lanes{nextFreeAt: make([]time.Time, n)}
	l.Reset(now)
	return l
}

// Len returns the number of lanes.
func (l *Lanes) Len() int {
	return len(l.nextFreeAt)
}

// Pick selects the lane with the earliest nextFreeAt, ties broken by the
// lowest index, and the time a traversal in it may start.
//
// Pick does not mutate state: the occupancy window depends on the width of
// the instance being scheduled, so the caller commits it with Commit.
func (l *Lanes) Pick(now time.Time) (lane int, startAt time.Time) {
	best := 0
	for i := 1; i < len(l.nextFreeAt); i++ {
		if l.nextFreeAt[i].Before(l.nextFreeAt[best]) {
			best = i
		}
	}
	startAt = l.nextFreeAt[best]
	if startAt.Before(now) {
		startAt = now
	}
	return best, startAt
}

// Commit marks lane busy until the given time. A commit earlier than the
// current nextFreeAt is ignored so the value never decreases.
func (l *Lanes) Commit(lane int, until time.Time) {
	if until.After(l.nextFreeAt[lane]) {
		l.nextFreeAt[lane] = until
	}
}

// Reset frees every lane at now.
func (l *Lanes) Reset(now time.Time) {
	for i := range l.nextFreeAt {
		l.nextFreeAt[i] = now
	}
}

// NextFreeAt returns the nextFreeAt of a lane.
func (l *Lanes) NextFreeAt(lane int) time.Time {
	return l.nextFreeAt[lane]
}

// Snapshot returns a copy of every lane's nextFreeAt.
func (l *Lanes) Snapshot() []time.Time {
	out := make([]time.Time, len(l.nextFreeAt))
	copy(out, l.nextFreeAt)
	return out
}
