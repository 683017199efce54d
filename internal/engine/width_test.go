package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlyphEstimator_NarrowAndWide(t *testing.T) {
	est := GlyphEstimator{}
	font := Font{Family: "sans-serif", SizePx: 20}

	ascii, err := est.Measure("hi", font)
	require.NoError(t, err)
	assert.InDelta(t, 2*0.55*20, ascii, 1e-9)

	cjk, err := est.Measure("弾幕", font)
	require.NoError(t, err)
	assert.InDelta(t, 2*20.0, cjk, 1e-9)

	full, err := est.Measure("Ａ", font)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, full, 1e-9, "fullwidth latin takes a full em")
}

func TestGlyphEstimator_NormalizesBeforeMeasuring(t *testing.T) {
	est := GlyphEstimator{}
	font := DefaultFont()

	composed, err := est.Measure("caf\u00e9", font)
	require.NoError(t, err)
	decomposed, err := est.Measure("cafe\u0301", font)
	require.NoError(t, err)

	assert.InDelta(t, composed, decomposed, 1e-9)
}

func TestGlyphEstimator_RejectsBadFont(t *testing.T) {
	_, err := GlyphEstimator{}.Measure("x", Font{SizePx: 0})
	assert.Error(t, err)
}

func TestFallbackEstimator_CountsRunes(t *testing.T) {
	w, err := FallbackEstimator{CharPx: 14}.Measure("弾幕ok", Font{})
	require.NoError(t, err)
	assert.Equal(t, 4*14.0, w)
}

func TestMeasureOrEstimate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FallbackCharPx = 10

	tests := []struct {
		name         string
		est          WidthEstimator
		wantWidth    float64
		wantDegraded bool
	}{
		{
			name:      "estimator succeeds",
			est:       perRune(3),
			wantWidth: 9,
		},
		{
			name: "estimator fails",
			est: WidthFunc(func(string, Font) (float64, error) {
				return 0, errors.New("no canvas")
			}),
			wantWidth:    30,
			wantDegraded: true,
		},
		{
			name: "negative width is treated as failure",
			est: WidthFunc(func(string, Font) (float64, error) {
				return -1, nil
			}),
			wantWidth:    30,
			wantDegraded: true,
		},
		{
			name:         "nil estimator",
			est:          nil,
			wantWidth:    30,
			wantDegraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, degraded := measureOrEstimate(tt.est, "abc", cfg)
			assert.Equal(t, tt.wantWidth, w)
			assert.Equal(t, tt.wantDegraded, degraded)
		})
	}
}
