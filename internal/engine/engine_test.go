package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/danmaku/internal/testutil"
)

// fakeTimers replaces time.AfterFunc so tests decide when completions fire.
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (ft *fakeTimers) afterFunc(d time.Duration, f func()) stopper {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTimers) at(i int) *fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.timers[i]
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	clk := testutil.NewManualClock(t0)
	opts = append([]Option{WithNow(clk.Now), WithIDSource(testutil.NewDeterministicClock())}, opts...)
	e, err := New(scenarioConfig(), perRune(10), opts...)
	require.NoError(t, err)
	return e
}

// startEngine runs e in the background and returns a func that stops it
// and waits for Run to return.
func startEngine(t *testing.T, e *Engine) func() error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	return func() error {
		e.Stop()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("engine did not stop")
			return nil
		}
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Lanes = 0

	_, err := New(cfg, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lanes")
}

func TestEngine_RunAppliesTriggersInOrder(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, WithObserver(rec))
	stop := startEngine(t, e)

	e.Load([]Message{{ID: "A", Content: "a"}, {ID: "B", Content: "b"}})
	e.Upsert(Message{ID: "C", Content: "c"})
	e.Remove("A")

	require.Eventually(t, func() bool {
		return len(rec.events()) == 4
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	assert.Equal(t, []string{"added:A", "added:B", "added:C", "removed:A:deleted"}, rec.events())
	assert.Equal(t, 2, e.PoolSize())
	assert.False(t, e.HasMessage("A"))
	assert.Len(t, e.Snapshot(), 2)
	assert.Len(t, e.LaneState(), DefaultLanes)
}

func TestEngine_StopRejectsLaterTriggers(t *testing.T) {
	e := newTestEngine(t)
	stop := startEngine(t, e)

	require.NoError(t, stop())

	assert.False(t, e.Upsert(Message{ID: "late"}))
	assert.Equal(t, 0, e.QueueLen())
}

func TestEngine_RunReturnsContextError(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on cancel")
	}
}

func TestEngine_MalformedTriggers(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name string
		ev   Event
	}{
		{"upsert without message", Event{Type: EventUpsert}},
		{"remove without id", Event{Type: EventRemove}},
		{"spawn without id", Event{Type: EventSpawn}},
		{"complete without instance", Event{Type: EventComplete}},
		{"unknown type", Event{Type: EventType(42)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.processEvent(tt.ev)
			require.Error(t, err)
			assert.True(t, IsMalformed(err))
		})
	}

	assert.Equal(t, 0, e.PoolSize(), "malformed triggers never mutate state")
}

func TestEngine_InvalidResizeIsNotMalformed(t *testing.T) {
	e := newTestEngine(t)

	err := e.processEvent(Event{Type: EventResize, Width: -1})

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeInvalidSurface, re.Code)
	assert.False(t, IsMalformed(err))
}

func TestEngine_ExpectedRacesAreNotErrors(t *testing.T) {
	e := newTestEngine(t)

	assert.NoError(t, e.processEvent(Event{Type: EventSpawn, MessageID: "ghost"}))
	assert.NoError(t, e.processEvent(Event{Type: EventComplete, InstanceID: 99}))
	assert.NoError(t, e.processEvent(Event{Type: EventRemove, MessageID: "ghost"}))
}

func TestEngine_AutoCompleteArmsAndStopsTimers(t *testing.T) {
	ft := &fakeTimers{}
	e := newTestEngine(t, WithAutoComplete())
	e.afterFunc = ft.afterFunc

	require.NoError(t, e.processEvent(Event{Type: EventUpsert, Message: &Message{ID: "A", Content: "hi"}}))
	require.Equal(t, 1, e.PendingTimers())

	inst := e.Snapshot()[0]
	assert.Equal(t, inst.Delay+inst.Duration, ft.at(0).d)

	require.NoError(t, e.processEvent(Event{Type: EventRemove, MessageID: "A"}))
	assert.Equal(t, 0, e.PendingTimers())
	assert.True(t, ft.at(0).stopped, "delete cancels the pending completion")
}

func TestEngine_AutoCompleteFiringLoops(t *testing.T) {
	ft := &fakeTimers{}
	e := newTestEngine(t, WithAutoComplete())
	e.afterFunc = ft.afterFunc

	require.NoError(t, e.processEvent(Event{Type: EventUpsert, Message: &Message{ID: "A", Content: "hi"}}))
	first := e.Snapshot()[0]

	ft.at(0).f()
	ev, ok := e.queue.TryDequeue()
	require.True(t, ok, "firing enqueues a completion")
	assert.Equal(t, EventComplete, ev.Type)
	assert.Equal(t, first.ID, ev.InstanceID)

	require.NoError(t, e.processEvent(ev))
	snap := e.Snapshot()
	require.Len(t, snap, 1)
	assert.Greater(t, snap[0].ID, first.ID)
	assert.Equal(t, 1, e.PendingTimers(), "old timer released, new one armed")
}

func TestEngine_AutoCompleteRealTime(t *testing.T) {
	cfg := scenarioConfig()
	cfg.SurfaceWidth = 1
	cfg.SpeedPxPerSec = 1e6
	cfg.MinDuration = 10 * time.Millisecond

	rec := &recorder{}
	e, err := New(cfg, perRune(1), WithAutoComplete(), WithObserver(rec))
	require.NoError(t, err)
	stop := startEngine(t, e)

	e.Upsert(Message{ID: "A", Content: "spin"})

	require.Eventually(t, func() bool {
		return len(rec.addedFor("A")) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	assert.Equal(t, 0, e.PendingTimers(), "timers released when the loop exits")
}

func TestEngine_ObserverMayReadState(t *testing.T) {
	e := newTestEngine(t)
	seen := make(chan int, 1)
	e.Subscribe(ObserverFuncs{Added: func(Instance) {
		seen <- len(e.Snapshot())
	}})
	stop := startEngine(t, e)

	e.Upsert(Message{ID: "A", Content: "hi"})

	select {
	case n := <-seen:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("observer blocked")
	}
	require.NoError(t, stop())
}
