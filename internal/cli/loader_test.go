package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/danmaku/internal/engine"
)

func writeCUE(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wall.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadWallConfig_Defaults(t *testing.T) {
	cfg, err := LoadWallConfig("")
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultConfig(), cfg)
}

func TestLoadWallConfig_Overrides(t *testing.T) {
	path := writeCUE(t, `
lanes: 6
speed: 200
min_duration_ms: 2500
font: size_px: 18
`)
	cfg, err := LoadWallConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Lanes)
	assert.Equal(t, 200.0, cfg.SpeedPxPerSec)
	assert.Equal(t, 2500*time.Millisecond, cfg.MinDuration)
	assert.Equal(t, 18.0, cfg.Font.SizePx)
	assert.Equal(t, "sans-serif", cfg.Font.Family)
	assert.Equal(t, engine.DefaultGapPx, cfg.GapPx)
}

func TestLoadWallConfig_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode string
	}{
		{"zero lanes", "lanes: 0\n", ErrCodeInvalidConfig},
		{"negative gap", "gap_px: -1\n", ErrCodeInvalidConfig},
		{"unknown field", "lane: 3\n", ErrCodeInvalidConfig},
		{"wrong type", "speed: \"fast\"\n", ErrCodeInvalidConfig},
		{"syntax error", "lanes: {\n", ErrCodeLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWallConfig(writeCUE(t, tt.content))
			require.Error(t, err)

			var le *LoadError
			require.True(t, errors.As(err, &le), "want *LoadError, got %T", err)
			assert.Equal(t, tt.wantCode, le.Code)
		})
	}
}

func TestLoadWallConfig_MissingFile(t *testing.T) {
	_, err := LoadWallConfig(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Code: ErrCodeInvalidConfig, Message: "lanes out of range"}
	assert.Equal(t, "E004: lanes out of range", err.Error())
}
