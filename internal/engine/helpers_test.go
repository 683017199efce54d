package engine

import (
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/roach88/danmaku/internal/testutil"
)

var t0 = testutil.Epoch

// perRune measures every rune as px pixels wide.
func perRune(px float64) WidthEstimator {
	return WidthFunc(func(text string, _ Font) (float64, error) {
		return float64(utf8.RuneCountInString(text)) * px, nil
	})
}

// scenarioConfig is the 800px / 140px/s wall used throughout the tests.
func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.SurfaceWidth = 800
	cfg.SpeedPxPerSec = 140
	cfg.MinDuration = 4 * time.Second
	cfg.GapPx = 40
	return cfg
}

func newTestWall(t *testing.T, cfg Config) (*Wall, *testutil.ManualClock) {
	t.Helper()
	clk := testutil.NewManualClock(t0)
	return NewWall(cfg, perRune(10), NewClock(), clk.Now), clk
}

type removal struct {
	inst   Instance
	reason RemoveReason
}

// recorder is an Observer that keeps every notification.
type recorder struct {
	mu      sync.Mutex
	added   []Instance
	removed []removal
	order   []string
}

func (r *recorder) InstanceAdded(inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, inst)
	r.order = append(r.order, "added:"+inst.MessageID)
}

func (r *recorder) InstanceRemoved(inst Instance, reason RemoveReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, removal{inst: inst, reason: reason})
	r.order = append(r.order, "removed:"+inst.MessageID+":"+reason.String())
}

func (r *recorder) addedFor(messageID string) []Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Instance
	for _, inst := range r.added {
		if inst.MessageID == messageID {
			out = append(out, inst)
		}
	}
	return out
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
