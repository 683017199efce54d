package harness

import (
	"fmt"
	"time"

	"github.com/roach88/danmaku/internal/engine"
	"github.com/roach88/danmaku/internal/testutil"
)

// maxSettle bounds the completions a single settle step may process.
const maxSettle = 100000

// Harness runs one scenario against a wall.
type Harness struct {
	wall   *engine.Wall
	clock  *testutil.ManualClock
	epoch  time.Time
	result *Result
}

// Run executes a scenario and returns the result.
//
// Each run starts from an empty wall at testutil.Epoch with instance ids
// counting from 1, so traces are reproducible. An error means the
// scenario could not be executed; failed assertions are reported in the
// result instead.
func Run(scenario *Scenario) (*Result, error) {
	cfg := scenario.Wall.Config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wall config: %w", err)
	}
	charPx := scenario.CharPx
	if charPx == 0 {
		charPx = DefaultCharPx
	}

	clock := testutil.NewManualClock(testutil.Epoch)
	ids := testutil.NewDeterministicClock()
	h := &Harness{
		wall:   engine.NewWall(cfg, engine.FallbackEstimator{CharPx: charPx}, ids, clock.Now),
		clock:  clock,
		epoch:  clock.Now(),
		result: NewResult(),
	}
	h.result.Config = cfg

	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	h.result.Active = h.wall.Active().All()
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) execute(step Step) error {
	h.advanceTo(h.epoch.Add(time.Duration(step.At) * time.Millisecond))

	switch {
	case step.Load != nil:
		msgs := make([]engine.Message, len(step.Load))
		for i, m := range step.Load {
			msgs[i] = engine.Message{ID: m.ID, Content: m.Content, CreatedAt: h.clock.Now()}
		}
		h.wall.Replace(msgs)
	case step.Upsert != nil:
		h.wall.Upsert(engine.Message{ID: step.Upsert.ID, Content: step.Upsert.Content, CreatedAt: h.clock.Now()})
	case step.Remove != "":
		h.wall.Remove(step.Remove)
	case step.Spawn != "":
		h.wall.Spawn(step.Spawn, step.Force)
	case step.Complete != 0:
		h.wall.Complete(step.Complete)
	case step.Resize != 0:
		if err := h.wall.Resize(step.Resize); err != nil {
			return err
		}
	case step.Settle:
		return h.settle()
	default:
		return fmt.Errorf("no operation")
	}
	h.wall.Flush(h)
	return nil
}

// settle completes every instance ending at or before now, earliest end
// first (ties by id), advancing the clock to each end time. Respawns that
// also end in the window are completed in turn.
func (h *Harness) settle() error {
	target := h.clock.Now()
	for n := 0; ; n++ {
		if n == maxSettle {
			return fmt.Errorf("settle: more than %d completions", maxSettle)
		}
		next, ok := h.nextEnding(target)
		if !ok {
			break
		}
		h.clock.Set(next.EndAt())
		h.wall.Complete(next.ID)
		h.wall.Flush(h)
	}
	h.clock.Set(target)
	return nil
}

func (h *Harness) nextEnding(limit time.Time) (engine.Instance, bool) {
	var (
		best  engine.Instance
		found bool
	)
	for _, inst := range h.wall.Active().All() {
		end := inst.EndAt()
		if end.After(limit) {
			continue
		}
		if !found || end.Before(best.EndAt()) || (end.Equal(best.EndAt()) && inst.ID < best.ID) {
			best, found = inst, true
		}
	}
	return best, found
}

func (h *Harness) advanceTo(t time.Time) {
	if t.After(h.clock.Now()) {
		h.clock.Set(t)
	}
}

// InstanceAdded records an added notification.
func (h *Harness) InstanceAdded(inst engine.Instance) {
	h.result.Spawned = append(h.result.Spawned, inst)
	h.record(EventAdded, inst, "")
}

// InstanceRemoved records a removed notification.
func (h *Harness) InstanceRemoved(inst engine.Instance, reason engine.RemoveReason) {
	h.record(EventRemoved, inst, reason.String())
}

func (h *Harness) record(event string, inst engine.Instance, reason string) {
	h.result.Trace = append(h.result.Trace, TraceEvent{
		AtMS:       sinceMS(h.epoch, h.clock.Now()),
		Event:      event,
		Instance:   inst.ID,
		Message:    inst.MessageID,
		Lane:       inst.Lane,
		StartMS:    sinceMS(h.epoch, inst.StartAt),
		DelayMS:    inst.Delay.Milliseconds(),
		DurationMS: inst.Duration.Milliseconds(),
		Reason:     reason,
	})
}
