package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/danmaku/internal/engine"
)

// DefaultTickInterval is the redraw period.
const DefaultTickInterval = 50 * time.Millisecond

// Completer is the part of the engine the renderer drives.
type Completer interface {
	Complete(instanceID int64) bool
	Resize(width float64) bool
}

// TickMsg advances the wall to the given time.
type TickMsg time.Time

// Config configures a Model.
type Config struct {
	// Lanes is the number of rows drawn.
	Lanes int

	// CellPx converts pixel positions to terminal columns.
	CellPx float64

	// TickInterval is the redraw period (default DefaultTickInterval).
	TickInterval time.Duration

	// Title is shown above the wall.
	Title string
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	laneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	statusStyle = lipgloss.NewStyle().Faint(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model is the bubbletea model for a scrolling comment wall.
type Model struct {
	cfg       Config
	completer Completer

	instances map[int64]engine.Instance
	signalled map[int64]bool

	now    time.Time
	width  int // in columns
	status string

	quitting bool
}

// NewModel creates a wall model. The completer receives one Complete per
// elapsed instance and a Resize whenever the terminal width changes.
func NewModel(cfg Config, completer Completer) *Model {
	if cfg.Lanes < 1 {
		cfg.Lanes = engine.DefaultLanes
	}
	if cfg.CellPx <= 0 {
		cfg.CellPx = DefaultCellPx
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Model{
		cfg:       cfg,
		completer: completer,
		instances: make(map[int64]engine.Instance),
		signalled: make(map[int64]bool),
		status:    "connecting",
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.cfg.TickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		if msg.Width > 0 && msg.Width != m.width {
			m.width = msg.Width
			m.completer.Resize(m.surfacePx())
		}

	case AddedMsg:
		m.instances[msg.Instance.ID] = msg.Instance

	case RemovedMsg:
		delete(m.instances, msg.Instance.ID)
		delete(m.signalled, msg.Instance.ID)

	case StatusMsg:
		m.status = msg.Text

	case TickMsg:
		m.advance(time.Time(msg))
		return m, m.tick()
	}
	return m, nil
}

// advance moves the clock and signals completion for every instance
// whose traversal has elapsed and that has not been signalled yet.
func (m *Model) advance(now time.Time) {
	m.now = now
	for _, id := range m.sortedIDs() {
		inst := m.instances[id]
		if m.signalled[id] || now.Before(inst.EndAt()) {
			continue
		}
		m.signalled[id] = true
		m.completer.Complete(id)
	}
}

func (m *Model) sortedIDs() []int64 {
	ids := make([]int64, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Model) surfacePx() float64 {
	return float64(m.width) * m.cfg.CellPx
}

// Column returns the terminal column of the label's left edge at now.
// Before its start the label sits just off the right edge; at its end it
// has fully left the surface.
func (m *Model) Column(inst engine.Instance, now time.Time) int {
	surface := m.surfacePx()
	distance := surface + inst.Width
	var x float64
	switch {
	case inst.Duration <= 0 || !now.Before(inst.EndAt()):
		x = -inst.Width
	case now.After(inst.StartAt):
		x = surface - distance*float64(now.Sub(inst.StartAt))/float64(inst.Duration)
	default:
		x = surface
	}
	return int(x / m.cfg.CellPx)
}

// Active returns the number of instances currently drawn.
func (m *Model) Active() int {
	return len(m.instances)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	title := m.cfg.Title
	if title == "" {
		title = "danmaku"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	rule := borderStyle.Render(strings.Repeat("─", max(m.width, 1)))
	b.WriteString(rule)
	b.WriteString("\n")

	for _, row := range m.rows() {
		b.WriteString(laneStyle.Render(row))
		b.WriteString("\n")
	}

	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(fmt.Sprintf("%s · %d in flight · q to quit", m.status, len(m.instances))))
	return b.String()
}

// rows lays every in-flight label onto a cell grid, one row per lane.
// Later instances overwrite earlier ones where they overlap.
func (m *Model) rows() []string {
	width := max(m.width, 0)
	grid := make([][]string, m.cfg.Lanes)
	for i := range grid {
		grid[i] = make([]string, width)
		for j := range grid[i] {
			grid[i][j] = " "
		}
	}

	for _, id := range m.sortedIDs() {
		inst := m.instances[id]
		if inst.Lane < 0 || inst.Lane >= len(grid) || m.now.Before(inst.StartAt) {
			continue
		}
		col := m.Column(inst, m.now)
		for _, r := range inst.Label {
			cell := string(r)
			w := lipgloss.Width(cell)
			if col >= 0 && col+w <= width {
				grid[inst.Lane][col] = cell
				if w == 2 {
					grid[inst.Lane][col+1] = ""
				}
			}
			col += w
		}
	}

	rows := make([]string, len(grid))
	for i, cells := range grid {
		rows[i] = strings.Join(cells, "")
	}
	return rows
}
