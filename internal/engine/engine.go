package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine is the single-writer scheduling loop around a Wall.
//
// Push events, local actions and completion signals arrive from many
// goroutines; they are turned into triggers and applied one at a time by
// Run, in the order they were enqueued. No ordering is promised between
// different sources.
//
// Thread-safety model:
//   - Load, Upsert, Remove, Spawn, Complete, Resize: safe from any goroutine
//   - Snapshot, LaneState, PoolSize, HasMessage: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// All wall mutation happens inside one exclusive section; reads take a
// shared lock. Observers are notified after the exclusive section ends.
type Engine struct {
	mu   sync.RWMutex
	wall *Wall

	queue *eventQueue

	obsMu     sync.RWMutex
	observers []Observer

	// Auto-completion timers, keyed by instance ID. Touched only from the
	// Run goroutine.
	autoComplete bool
	afterFunc    func(time.Duration, func()) stopper
	timers       map[int64]stopper
}

type stopper interface {
	Stop() bool
}

type options struct {
	ids          IDSource
	now          func() time.Time
	autoComplete bool
	afterFunc    func(time.Duration, func()) stopper
	observers    []Observer
}

// Option configures an Engine.
type Option func(*options)

// WithIDSource sets the instance identity source. Default: NewClock().
func WithIDSource(ids IDSource) Option {
	return func(o *options) { o.ids = ids }
}

// WithNow sets the time source. Default: time.Now.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithObserver registers an observer at construction time.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithAutoComplete makes the engine complete each instance itself once its
// delay and duration have elapsed. Use it when no renderer reports
// completions (headless runs).
func WithAutoComplete() Option {
	return func(o *options) { o.autoComplete = true }
}

// New creates an Engine for cfg. est may be nil, in which case every label
// is measured with the fallback approximation.
func New(cfg Config, est WidthEstimator, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wall config: %w", err)
	}

	o := &options{
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Engine{
		wall:         NewWall(cfg, est, o.ids, o.now),
		queue:        newEventQueue(),
		observers:    o.observers,
		autoComplete: o.autoComplete,
		afterFunc:    o.afterFunc,
		timers:       make(map[int64]stopper),
	}, nil
}

// Subscribe registers an observer for instance notifications.
func (e *Engine) Subscribe(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

// Enqueue submits a trigger. Returns false once the engine is stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// Load replaces the pool with a fetched snapshot and spawns every message
// immediately.
func (e *Engine) Load(msgs []Message) bool {
	cp := make([]Message, len(msgs))
	copy(cp, msgs)
	return e.Enqueue(Event{Type: EventLoad, Messages: cp})
}

// Upsert inserts or replaces one message.
func (e *Engine) Upsert(m Message) bool {
	return e.Enqueue(Event{Type: EventUpsert, Message: &m})
}

// Remove deletes a message and tears down its instances.
func (e *Engine) Remove(id string) bool {
	return e.Enqueue(Event{Type: EventRemove, MessageID: id})
}

// Spawn schedules one more traversal for a message in the pool.
func (e *Engine) Spawn(id string, force bool) bool {
	return e.Enqueue(Event{Type: EventSpawn, MessageID: id, Force: force})
}

// Complete is the renderer's completion signal for an instance. It must
// be sent once per instance; extra signals are ignored.
func (e *Engine) Complete(instanceID int64) bool {
	return e.Enqueue(Event{Type: EventComplete, InstanceID: instanceID})
}

// Resize changes the surface width for future spawns.
func (e *Engine) Resize(width float64) bool {
	return e.Enqueue(Event{Type: EventResize, Width: width})
}

// QueueLen returns the number of pending triggers.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Snapshot returns the active instances in creation order.
func (e *Engine) Snapshot() []Instance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wall.Active().All()
}

// LaneState returns every lane's nextFreeAt.
func (e *Engine) LaneState() []time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wall.Lanes().Snapshot()
}

// PoolSize returns the number of messages in the pool.
func (e *Engine) PoolSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wall.Pool().Len()
}

// HasMessage reports whether id is in the pool.
func (e *Engine) HasMessage(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wall.Pool().Has(id)
}

// Run starts the single-writer loop. It blocks until ctx is cancelled or
// Stop is called, then stops every pending completion timer.
//
// A trigger that cannot be applied is logged with its context and
// dropped; the loop never halts on a bad trigger.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")
	defer e.stopTimers()

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(event); err != nil {
				logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Close, so a closed and
			// drained queue lands here immediately.
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop shuts the loop down. Triggers enqueued afterwards are rejected.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processEvent applies one trigger. Called only from Run.
func (e *Engine) processEvent(ev Event) error {
	e.mu.Lock()
	err := e.apply(ev)
	pending := e.wall.takePending()
	e.mu.Unlock()

	e.trackTimers(pending)

	e.obsMu.RLock()
	observers := e.observers
	e.obsMu.RUnlock()
	for _, n := range pending {
		for _, o := range observers {
			n.deliver(o)
		}
	}
	return err
}

func (e *Engine) apply(ev Event) error {
	w := e.wall
	switch ev.Type {
	case EventLoad:
		w.Replace(ev.Messages)
		slog.Debug("pool replaced", "messages", len(ev.Messages))

	case EventUpsert:
		if ev.Message == nil {
			return newMissingPayload(ev.Type, "message")
		}
		created := w.Upsert(*ev.Message)
		slog.Debug("message upserted", "message", ev.Message.ID, "created", created)

	case EventRemove:
		if ev.MessageID == "" {
			return newMissingPayload(ev.Type, "message id")
		}
		existed := w.Remove(ev.MessageID)
		slog.Debug("message removed", "message", ev.MessageID, "existed", existed)

	case EventSpawn:
		if ev.MessageID == "" {
			return newMissingPayload(ev.Type, "message id")
		}
		w.Spawn(ev.MessageID, ev.Force)

	case EventComplete:
		if ev.InstanceID == 0 {
			return newMissingPayload(ev.Type, "instance id")
		}
		w.Complete(ev.InstanceID)

	case EventResize:
		if err := w.Resize(ev.Width); err != nil {
			return &RuntimeError{Code: ErrCodeInvalidSurface, Message: err.Error(), Event: ev.Type}
		}

	default:
		return &RuntimeError{
			Code:    ErrCodeUnknownEvent,
			Message: fmt.Sprintf("unknown event type: %d", ev.Type),
			Event:   ev.Type,
		}
	}
	return nil
}

// trackTimers arms a completion timer for each added instance and stops
// the timer of each removed one. No-op without auto-completion.
func (e *Engine) trackTimers(pending []notification) {
	if !e.autoComplete {
		return
	}
	for _, n := range pending {
		id := n.inst.ID
		if n.removed {
			if t, ok := e.timers[id]; ok {
				t.Stop()
				delete(e.timers, id)
			}
			continue
		}
		e.timers[id] = e.afterFunc(n.inst.Delay+n.inst.Duration, func() {
			e.Complete(id)
		})
	}
}

func (e *Engine) stopTimers() {
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

// PendingTimers returns the number of armed completion timers. Only
// meaningful once Run has returned or from tests that drive processEvent.
func (e *Engine) PendingTimers() int {
	return len(e.timers)
}

func logEventError(ev Event, err error) {
	slog.Error("trigger dropped",
		"event", ev.Type.String(),
		"message", ev.MessageID,
		"instance", ev.InstanceID,
		"error", err,
	)
}
