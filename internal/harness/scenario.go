package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/danmaku/internal/engine"
)

// DefaultCharPx is the per-rune label width used when a scenario does not
// set char_px.
const DefaultCharPx = 10.0

// Scenario is a timeline of wall operations plus assertions on the result.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Wall overrides the default wall configuration.
	Wall WallConfig `yaml:"wall,omitempty"`

	// CharPx is the width of every rune of a label.
	CharPx float64 `yaml:"char_px,omitempty"`

	// Steps run in order. Step times must not decrease.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// WallConfig holds scenario overrides. Zero fields keep the defaults.
type WallConfig struct {
	Lanes         int      `yaml:"lanes,omitempty"`
	SurfaceWidth  float64  `yaml:"surface_width,omitempty"`
	Speed         float64  `yaml:"speed,omitempty"`
	MinDurationMS int64    `yaml:"min_duration_ms,omitempty"`
	GapPx         *float64 `yaml:"gap_px,omitempty"`
}

// Config returns the engine configuration for the scenario.
func (w WallConfig) Config() engine.Config {
	cfg := engine.DefaultConfig()
	if w.Lanes > 0 {
		cfg.Lanes = w.Lanes
	}
	if w.SurfaceWidth > 0 {
		cfg.SurfaceWidth = w.SurfaceWidth
	}
	if w.Speed > 0 {
		cfg.SpeedPxPerSec = w.Speed
	}
	if w.MinDurationMS > 0 {
		cfg.MinDuration = time.Duration(w.MinDurationMS) * time.Millisecond
	}
	if w.GapPx != nil {
		cfg.GapPx = *w.GapPx
	}
	return cfg
}

// MessageSpec is a message as written in a scenario.
type MessageSpec struct {
	ID      string `yaml:"id"`
	Content string `yaml:"content"`
}

// Step is one operation at a logical time. Exactly one operation field
// must be set.
type Step struct {
	// At is the step time in milliseconds since the scenario epoch.
	At int64 `yaml:"at"`

	Load     []MessageSpec `yaml:"load,omitempty"`
	Upsert   *MessageSpec  `yaml:"upsert,omitempty"`
	Remove   string        `yaml:"remove,omitempty"`
	Spawn    string        `yaml:"spawn,omitempty"`
	Force    bool          `yaml:"force,omitempty"` // with spawn
	Complete int64         `yaml:"complete,omitempty"`
	Resize   float64       `yaml:"resize,omitempty"`
	Settle   bool          `yaml:"settle,omitempty"`
}

// Step operation names.
const (
	OpLoad     = "load"
	OpUpsert   = "upsert"
	OpRemove   = "remove"
	OpSpawn    = "spawn"
	OpComplete = "complete"
	OpResize   = "resize"
	OpSettle   = "settle"
)

// Ops returns the operations set on the step.
func (s Step) Ops() []string {
	var ops []string
	if s.Load != nil {
		ops = append(ops, OpLoad)
	}
	if s.Upsert != nil {
		ops = append(ops, OpUpsert)
	}
	if s.Remove != "" {
		ops = append(ops, OpRemove)
	}
	if s.Spawn != "" {
		ops = append(ops, OpSpawn)
	}
	if s.Complete != 0 {
		ops = append(ops, OpComplete)
	}
	if s.Resize != 0 {
		ops = append(ops, OpResize)
	}
	if s.Settle {
		ops = append(ops, OpSettle)
	}
	return ops
}

// Assertion checks the final state or the spawn history.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected number of instances (active_count).
	Count *int `yaml:"count,omitempty"`

	// Message names a message id (no_instances_for).
	Message string `yaml:"message,omitempty"`

	// Messages lists message ids (lane_distinct).
	Messages []string `yaml:"messages,omitempty"`
}

// Assertion type constants.
const (
	AssertActiveCount    = "active_count"
	AssertLaneDistinct   = "lane_distinct"
	AssertNoInstancesFor = "no_instances_for"
	AssertMinDuration    = "min_duration"
	AssertLaneSpacing    = "lane_spacing"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict fields catch typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.CharPx < 0 {
		return fmt.Errorf("char_px must be non-negative")
	}

	if err := s.Wall.Config().Validate(); err != nil {
		return fmt.Errorf("wall: %w", err)
	}

	var last int64
	for i, step := range s.Steps {
		if step.At < last {
			return fmt.Errorf("steps[%d]: at %d is before the previous step (%d)", i, step.At, last)
		}
		last = step.At

		ops := step.Ops()
		switch {
		case len(ops) == 0:
			return fmt.Errorf("steps[%d]: no operation", i)
		case len(ops) > 1:
			return fmt.Errorf("steps[%d]: exactly one operation allowed, got %v", i, ops)
		}
		if step.Force && step.Spawn == "" {
			return fmt.Errorf("steps[%d]: force is only valid with spawn", i)
		}
		if step.Upsert != nil && step.Upsert.ID == "" {
			return fmt.Errorf("steps[%d].upsert: id is required", i)
		}
		for j, m := range step.Load {
			if m.ID == "" {
				return fmt.Errorf("steps[%d].load[%d]: id is required", i, j)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertActiveCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for active_count", index)
		}
	case AssertLaneDistinct:
		if len(a.Messages) < 2 {
			return fmt.Errorf("assertions[%d]: at least two messages are required for lane_distinct", index)
		}
	case AssertNoInstancesFor:
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for no_instances_for", index)
		}
	case AssertMinDuration, AssertLaneSpacing:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
