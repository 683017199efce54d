package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/danmaku/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string            // Assertion type for categorization
	Expected string            // Human-readable expected outcome
	Actual   string            // Human-readable actual outcome
	Active   []engine.Instance // In-flight instances for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Active) > 0 {
		fmt.Fprintf(&buf, "\nActive instances:\n")
		for _, inst := range e.Active {
			fmt.Fprintf(&buf, "  [%d] %s lane=%d start=%s\n",
				inst.ID, inst.MessageID, inst.Lane, inst.StartAt.Format("15:04:05.000"))
		}
	}

	return buf.String()
}

func assertActiveCount(r *Result, a Assertion) error {
	if len(r.Active) == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertActiveCount,
		Expected: fmt.Sprintf("%d active instances", *a.Count),
		Actual:   fmt.Sprintf("%d active instances", len(r.Active)),
		Active:   r.Active,
	}
}

// assertLaneDistinct checks that the newest in-flight instance of each
// listed message sits in its own lane.
func assertLaneDistinct(r *Result, a Assertion) error {
	lanes := make(map[string]int, len(a.Messages))
	for _, inst := range r.Active {
		lanes[inst.MessageID] = inst.Lane
	}
	owner := make(map[int]string)
	for _, id := range a.Messages {
		lane, ok := lanes[id]
		if !ok {
			return &AssertionError{
				Type:     AssertLaneDistinct,
				Expected: fmt.Sprintf("message %q in flight", id),
				Actual:   "no active instance",
				Active:   r.Active,
			}
		}
		if other, taken := owner[lane]; taken {
			return &AssertionError{
				Type:     AssertLaneDistinct,
				Expected: fmt.Sprintf("%q and %q in different lanes", other, id),
				Actual:   fmt.Sprintf("both in lane %d", lane),
				Active:   r.Active,
			}
		}
		owner[lane] = id
	}
	return nil
}

func assertNoInstancesFor(r *Result, a Assertion) error {
	var found []int64
	for _, inst := range r.Active {
		if inst.MessageID == a.Message {
			found = append(found, inst.ID)
		}
	}
	if len(found) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoInstancesFor,
		Expected: fmt.Sprintf("no instances for %q", a.Message),
		Actual:   fmt.Sprintf("instances %v", found),
		Active:   r.Active,
	}
}

func assertMinDuration(r *Result, _ Assertion) error {
	for _, inst := range r.Spawned {
		if inst.Duration < r.Config.MinDuration {
			return &AssertionError{
				Type:     AssertMinDuration,
				Expected: fmt.Sprintf("duration >= %s", r.Config.MinDuration),
				Actual:   fmt.Sprintf("instance %d has %s", inst.ID, inst.Duration),
			}
		}
	}
	return nil
}

// assertLaneSpacing checks that, per lane, every instance starts no
// earlier than the previous one's start plus its gap time.
func assertLaneSpacing(r *Result, _ Assertion) error {
	byLane := make(map[int][]engine.Instance)
	for _, inst := range r.Spawned {
		byLane[inst.Lane] = append(byLane[inst.Lane], inst)
	}
	lanes := make([]int, 0, len(byLane))
	for lane := range byLane {
		lanes = append(lanes, lane)
	}
	sort.Ints(lanes)

	for _, lane := range lanes {
		insts := byLane[lane]
		sort.SliceStable(insts, func(i, j int) bool { return insts[i].StartAt.Before(insts[j].StartAt) })
		for i := 1; i < len(insts); i++ {
			prev, next := insts[i-1], insts[i]
			clear := prev.StartAt.Add(prev.GapTime)
			if next.StartAt.Before(clear) {
				return &AssertionError{
					Type:     AssertLaneSpacing,
					Expected: fmt.Sprintf("lane %d: instance %d starts at or after %s", lane, next.ID, clear.Format("15:04:05.000")),
					Actual:   fmt.Sprintf("starts at %s", next.StartAt.Format("15:04:05.000")),
				}
			}
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertActiveCount:
			if assertion.Count == nil {
				err = fmt.Errorf("assertion[%d]: active_count requires count", i)
			} else {
				err = assertActiveCount(result, assertion)
			}
		case AssertLaneDistinct:
			err = assertLaneDistinct(result, assertion)
		case AssertNoInstancesFor:
			err = assertNoInstancesFor(result, assertion)
		case AssertMinDuration:
			err = assertMinDuration(result, assertion)
		case AssertLaneSpacing:
			err = assertLaneSpacing(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
