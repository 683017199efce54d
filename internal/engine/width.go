package engine

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Font describes the typeface a label is rendered with. Only the fields
// that influence width measurement are modelled.
type Font struct {
	Family string
	SizePx float64
}

// DefaultFont is the font assumed when none is configured.
func DefaultFont() Font {
	return Font{Family: "sans-serif", SizePx: 24}
}

// WidthEstimator measures the rendered pixel width of text under a font.
//
// Implementations must be deterministic for a fixed environment. Callers
// only rely on environment-local consistency, never on exact values.
type WidthEstimator interface {
	Measure(text string, font Font) (float64, error)
}

// WidthFunc adapts a plain function to WidthEstimator.
type WidthFunc func(text string, font Font) (float64, error)

// Measure calls f.
func (f WidthFunc) Measure(text string, font Font) (float64, error) {
	return f(text, font)
}

// Glyph advance ratios relative to the font size.
const (
	wideAdvance   = 1.0
	narrowAdvance = 0.55
)

// GlyphEstimator approximates proportional font metrics without a
// rendering surface: wide and fullwidth runes take a full em, combining
// marks take nothing, everything else takes narrowAdvance em.
type GlyphEstimator struct{}

// Measure implements WidthEstimator.
func (GlyphEstimator) Measure(text string, font Font) (float64, error) {
	if font.SizePx <= 0 {
		return 0, fmt.Errorf("measure %q: font size must be positive, got %v", text, font.SizePx)
	}

	// Precomposed and decomposed forms must measure the same.
	text = norm.NFC.String(text)

	var em float64
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Mn, r):
			// zero advance
		case isWide(r):
			em += wideAdvance
		default:
			em += narrowAdvance
		}
	}
	return em * font.SizePx, nil
}

func isWide(r rune) bool {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return true
	}
	return false
}

// FallbackEstimator is the coarse length × constant approximation.
// It never fails.
type FallbackEstimator struct {
	CharPx float64
}

// Measure implements WidthEstimator.
func (f FallbackEstimator) Measure(text string, _ Font) (float64, error) {
	return float64(utf8.RuneCountInString(text)) * f.CharPx, nil
}

// measureOrEstimate measures text with est, degrading to the fallback
// approximation when measurement is unavailable. Scheduling never blocks
// on a measurement failure.
func measureOrEstimate(est WidthEstimator, text string, cfg Config) (w float64, degraded bool) {
	if est != nil {
		if w, err := est.Measure(text, cfg.Font); err == nil && w >= 0 {
			return w, false
		}
	}
	fb := FallbackEstimator{CharPx: cfg.FallbackCharPx}
	w, _ = fb.Measure(text, cfg.Font)
	return w, true
}
