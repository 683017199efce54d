package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Test scenario for validation"
wall:
  lanes: 3
  min_duration_ms: 2000
  gap_px: 0
char_px: 8
steps:
  - at: 0
    upsert: { id: A, content: hello }
  - at: 500
    spawn: A
    force: true
assertions:
  - type: active_count
    count: 2
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, 8.0, scenario.CharPx)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "A", scenario.Steps[0].Upsert.ID)
	assert.Equal(t, "A", scenario.Steps[1].Spawn)
	assert.True(t, scenario.Steps[1].Force)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, 2, *scenario.Assertions[0].Count)

	cfg := scenario.Wall.Config()
	assert.Equal(t, 3, cfg.Lanes)
	assert.Equal(t, 2*time.Second, cfg.MinDuration)
	assert.Equal(t, 0.0, cfg.GapPx)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "misspelled assertions key"
steps:
  - at: 0
    settle: true
assertion:
  - type: min_duration
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps:\n  - at: 0\n    settle: true\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps:\n  - at: 0\n    settle: true\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "time goes backwards",
			yaml:    "name: n\ndescription: d\nsteps:\n  - at: 10\n    settle: true\n  - at: 5\n    settle: true\n",
			wantErr: "before the previous step",
		},
		{
			name:    "empty step",
			yaml:    "name: n\ndescription: d\nsteps:\n  - at: 0\n",
			wantErr: "no operation",
		},
		{
			name:    "two operations",
			yaml:    "name: n\ndescription: d\nsteps:\n  - at: 0\n    remove: A\n    settle: true\n",
			wantErr: "exactly one operation",
		},
		{
			name:    "force without spawn",
			yaml:    "name: n\ndescription: d\nsteps:\n  - at: 0\n    remove: A\n    force: true\n",
			wantErr: "force is only valid with spawn",
		},
		{
			name:    "upsert without id",
			yaml:    "name: n\ndescription: d\nsteps:\n  - at: 0\n    upsert: { content: hi }\n",
			wantErr: "id is required",
		},
		{
			name:    "bad wall",
			yaml:    "name: n\ndescription: d\nwall:\n  min_duration_ms: 1\n  gap_px: -1\nsteps:\n  - at: 0\n    settle: true\n",
			wantErr: "wall:",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nsteps:\n  - at: 0\n    settle: true\nassertions:\n  - type: bogus\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "active_count without count",
			yaml:    "name: n\ndescription: d\nsteps:\n  - at: 0\n    settle: true\nassertions:\n  - type: active_count\n",
			wantErr: "count is required",
		},
		{
			name:    "lane_distinct with one message",
			yaml:    "name: n\ndescription: d\nsteps:\n  - at: 0\n    settle: true\nassertions:\n  - type: lane_distinct\n    messages: [A]\n",
			wantErr: "at least two messages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStepOps(t *testing.T) {
	assert.Empty(t, Step{}.Ops())
	assert.Equal(t, []string{OpSettle}, Step{Settle: true}.Ops())
	assert.Equal(t, []string{OpLoad}, Step{Load: []MessageSpec{}}.Ops())
	assert.Equal(t, []string{OpRemove, OpComplete}, Step{Remove: "A", Complete: 3}.Ops())
}
