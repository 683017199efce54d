package engine

import (
	"fmt"
	"math"
	"time"
)

// Default geometry and motion constants for a wall.
const (
	DefaultLanes          = 10
	DefaultLaneHeight     = 36.0
	DefaultTopPadding     = 16.0
	DefaultSpeedPxPerSec  = 140.0
	DefaultMinDuration    = 4 * time.Second
	DefaultGapPx          = 40.0
	DefaultSurfaceWidth   = 1280.0
	DefaultFallbackCharPx = 14.0
)

// Config holds the recognized wall constants.
//
// LaneHeight and TopPadding only affect the vertical offset handed to the
// renderer; they have no scheduling effect.
type Config struct {
	Lanes         int
	LaneHeight    float64
	TopPadding    float64
	SpeedPxPerSec float64
	MinDuration   time.Duration
	GapPx         float64

	// SurfaceWidth is the initial surface width in pixels. It can be
	// changed at runtime with Engine.Resize.
	SurfaceWidth float64

	// Font is passed to the WidthEstimator for every label.
	Font Font

	// FallbackCharPx is the per-rune width used when the estimator fails.
	FallbackCharPx float64
}

// DefaultConfig returns the default wall configuration.
func DefaultConfig() Config {
	return Config{
		Lanes:          DefaultLanes,
		LaneHeight:     DefaultLaneHeight,
		TopPadding:     DefaultTopPadding,
		SpeedPxPerSec:  DefaultSpeedPxPerSec,
		MinDuration:    DefaultMinDuration,
		GapPx:          DefaultGapPx,
		SurfaceWidth:   DefaultSurfaceWidth,
		Font:           DefaultFont(),
		FallbackCharPx: DefaultFallbackCharPx,
	}
}

// Validate reports the first invalid field. NaN and infinite values are
// rejected everywhere a float is accepted.
func (c Config) Validate() error {
	switch {
	case c.Lanes < 1:
		return fmt.Errorf("lanes must be >= 1, got %d", c.Lanes)
	case !positive(c.SpeedPxPerSec):
		return fmt.Errorf("speed must be > 0, got %v", c.SpeedPxPerSec)
	case c.MinDuration < 0:
		return fmt.Errorf("min duration must be >= 0, got %v", c.MinDuration)
	case !nonNegative(c.GapPx):
		return fmt.Errorf("gap must be >= 0, got %v", c.GapPx)
	case !nonNegative(c.LaneHeight) || !nonNegative(c.TopPadding):
		return fmt.Errorf("lane geometry must be non-negative")
	case !positive(c.SurfaceWidth):
		return fmt.Errorf("surface width must be > 0, got %v", c.SurfaceWidth)
	case !positive(c.FallbackCharPx):
		return fmt.Errorf("fallback char width must be > 0, got %v", c.FallbackCharPx)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positive(v float64) bool {
	return finite(v) && v > 0
}

func nonNegative(v float64) bool {
	return finite(v) && v >= 0
}

// LaneOffset returns the vertical offset of a lane.
func (c Config) LaneOffset(lane int) float64 {
	return c.TopPadding + float64(lane)*c.LaneHeight
}
