package engine

import (
	"fmt"
	"time"
)

// Wall is the scheduling state of one comment wall: the message pool, the
// lane allocator and the active instance set, plus the loop/recycle rules
// that tie them together.
//
// Wall is synchronous and not safe for concurrent use. The Engine wraps it
// in a single-writer loop; the scenario harness drives it directly.
//
// Every state change buffers an observer notification. Callers deliver
// them with Flush once the change is committed.
type Wall struct {
	cfg     Config
	est     WidthEstimator
	ids     IDSource
	now     func() time.Time
	surface float64

	pool    *Pool
	lanes   *Lanes
	active  *ActiveSet
	pending []notification
}

// NewWall creates an empty wall. A nil ids or now falls back to a fresh
// Clock and time.Now.
func NewWall(cfg Config, est WidthEstimator, ids IDSource, now func() time.Time) *Wall {
	if ids == nil {
		ids = NewClock()
	}
	if now == nil {
		now = time.Now
	}
	return &Wall{
		cfg:     cfg,
		est:     est,
		ids:     ids,
		now:     now,
		surface: cfg.SurfaceWidth,
		pool:    NewPool(),
		lanes:   NewLanes(cfg.Lanes, now()),
		active:  NewActiveSet(),
	}
}

// Upsert inserts or replaces m. A new ID is spawned immediately; a
// replacement only updates content, and in-flight instances keep their
// label until their next loop.
func (w *Wall) Upsert(m Message) (created bool) {
	created = w.pool.Upsert(m)
	if created {
		w.Spawn(m.ID, false)
	}
	return created
}

// Remove deletes id from the pool and tears down every instance that
// references it, regardless of traversal progress. Instances are dropped
// even if the pool no longer held id, so a duplicate delete event is
// harmless.
func (w *Wall) Remove(id string) (existed bool) {
	existed = w.pool.Remove(id)
	for _, inst := range w.active.RemoveMessage(id) {
		w.emit(notification{inst: inst, removed: true, reason: RemoveDeleted})
	}
	return existed
}

// Replace reinitializes the wall from a fetched snapshot: the previous
// instances are dropped, lanes are freed at now, and every message is
// spawned immediately.
func (w *Wall) Replace(msgs []Message) {
	for _, inst := range w.active.Clear() {
		w.emit(notification{inst: inst, removed: true, reason: RemoveReset})
	}
	w.pool.Replace(msgs)
	w.lanes.Reset(w.now())
	for _, id := range w.pool.IDs() {
		w.Spawn(id, true)
	}
}

// Complete handles the renderer's completion signal for one instance.
//
// The instance is removed and, if its message is still in the pool, a new
// traversal is spawned with freshly computed lane and duration. An unknown
// instance ID (already completed, or torn down by a delete) is ignored,
// which makes completion exactly-once.
func (w *Wall) Complete(instanceID int64) (next Instance, respawned bool) {
	inst, ok := w.active.Remove(instanceID)
	if !ok {
		return Instance{}, false
	}
	w.emit(notification{inst: inst, removed: true, reason: RemoveCompleted})
	if !w.pool.Has(inst.MessageID) {
		return Instance{}, false
	}
	return w.Spawn(inst.MessageID, false)
}

// Resize changes the surface width used by future spawns. In-flight
// instances keep the duration they were scheduled with.
func (w *Wall) Resize(width float64) error {
	if !positive(width) {
		return fmt.Errorf("surface width must be > 0, got %v", width)
	}
	w.surface = width
	return nil
}

// SurfaceWidth returns the current surface width.
func (w *Wall) SurfaceWidth() float64 {
	return w.surface
}

// Pool exposes the message pool for reads.
func (w *Wall) Pool() *Pool {
	return w.pool
}

// Lanes exposes the lane allocator for reads.
func (w *Wall) Lanes() *Lanes {
	return w.lanes
}

// Active exposes the active instance set for reads.
func (w *Wall) Active() *ActiveSet {
	return w.active
}

// Flush delivers buffered notifications to each observer in emission
// order and clears the buffer.
func (w *Wall) Flush(observers ...Observer) {
	pending := w.takePending()
	for _, n := range pending {
		for _, o := range observers {
			n.deliver(o)
		}
	}
}

func (w *Wall) emit(n notification) {
	w.pending = append(w.pending, n)
}

func (w *Wall) takePending() []notification {
	p := w.pending
	w.pending = nil
	return p
}
