package harness

import (
	"time"

	"github.com/roach88/danmaku/internal/engine"
)

// Trace event names.
const (
	EventAdded   = "added"
	EventRemoved = "removed"
)

// TraceEvent is one observer notification, with times in milliseconds
// since the scenario epoch.
type TraceEvent struct {
	AtMS       int64  `json:"at_ms"`
	Event      string `json:"event"`
	Instance   int64  `json:"instance"`
	Message    string `json:"message"`
	Lane       int    `json:"lane"`
	StartMS    int64  `json:"start_ms"`
	DelayMS    int64  `json:"delay_ms"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace lists every notification in delivery order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Spawned holds every instance created during the run, in order.
	Spawned []engine.Instance `json:"-"`

	// Active holds the in-flight instances at the end of the run.
	Active []engine.Instance `json:"-"`

	// Config is the wall configuration the scenario ran with.
	Config engine.Config `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// ActiveIDs returns the ids of the instances still in flight.
func (r *Result) ActiveIDs() []int64 {
	ids := make([]int64, len(r.Active))
	for i, inst := range r.Active {
		ids[i] = inst.ID
	}
	return ids
}

func sinceMS(epoch, t time.Time) int64 {
	return t.Sub(epoch).Milliseconds()
}
