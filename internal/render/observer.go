package render

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/danmaku/internal/engine"
)

// AddedMsg carries an engine added notification into the program.
type AddedMsg struct {
	Instance engine.Instance
}

// RemovedMsg carries an engine removed notification into the program.
type RemovedMsg struct {
	Instance engine.Instance
	Reason   engine.RemoveReason
}

// StatusMsg replaces the status line.
type StatusMsg struct {
	Text string
}

// Sender delivers messages to a running program. *tea.Program satisfies
// it.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards engine notifications to a bubbletea program.
type Observer struct {
	sender Sender
}

// NewObserver returns an engine.Observer that sends to s.
func NewObserver(s Sender) *Observer {
	return &Observer{sender: s}
}

// InstanceAdded implements engine.Observer.
func (o *Observer) InstanceAdded(inst engine.Instance) {
	o.sender.Send(AddedMsg{Instance: inst})
}

// InstanceRemoved implements engine.Observer.
func (o *Observer) InstanceRemoved(inst engine.Instance, reason engine.RemoveReason) {
	o.sender.Send(RemovedMsg{Instance: inst, Reason: reason})
}

var _ engine.Observer = (*Observer)(nil)
