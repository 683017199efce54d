package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/danmaku/internal/engine"
)

// DefaultCellPx is the pixel width assigned to one terminal cell.
const DefaultCellPx = 10.0

// CellEstimator measures labels in terminal cells scaled to pixels, so
// the scheduling formulas keep working in pixel units on a terminal
// surface. Wide runes count as two cells.
type CellEstimator struct {
	CellPx float64
}

// Measure implements engine.WidthEstimator.
func (c CellEstimator) Measure(text string, _ engine.Font) (float64, error) {
	return float64(lipgloss.Width(text)) * c.cellPx(), nil
}

func (c CellEstimator) cellPx() float64 {
	if c.CellPx > 0 {
		return c.CellPx
	}
	return DefaultCellPx
}
