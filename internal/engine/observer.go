package engine

import "log/slog"

// RemoveReason explains why an instance left the active set.
type RemoveReason int

const (
	// RemoveCompleted: the renderer reported the traversal finished.
	RemoveCompleted RemoveReason = iota + 1
	// RemoveDeleted: the message was deleted while in flight.
	RemoveDeleted
	// RemoveReset: a bulk replace discarded the previous wall.
	RemoveReset
)

func (r RemoveReason) String() string {
	switch r {
	case RemoveCompleted:
		return "completed"
	case RemoveDeleted:
		return "deleted"
	case RemoveReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Observer receives instance lifecycle notifications.
//
// Notifications are delivered on the engine goroutine, after the state
// change is committed and outside the engine's exclusive section, so an
// observer may call Snapshot. Observers must not block for long.
type Observer interface {
	InstanceAdded(inst Instance)
	InstanceRemoved(inst Instance, reason RemoveReason)
}

// ObserverFuncs adapts a pair of functions to Observer. Nil fields are
// skipped.
type ObserverFuncs struct {
	Added   func(Instance)
	Removed func(Instance, RemoveReason)
}

// InstanceAdded implements Observer.
func (o ObserverFuncs) InstanceAdded(inst Instance) {
	if o.Added != nil {
		o.Added(inst)
	}
}

// InstanceRemoved implements Observer.
func (o ObserverFuncs) InstanceRemoved(inst Instance, reason RemoveReason) {
	if o.Removed != nil {
		o.Removed(inst, reason)
	}
}

// LogObserver logs every notification. It is the renderer used by
// headless runs.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// InstanceAdded implements Observer.
func (o LogObserver) InstanceAdded(inst Instance) {
	o.logger().Info("instance added",
		"instance", inst.ID,
		"message", inst.MessageID,
		"lane", inst.Lane,
		"delay", inst.Delay,
		"duration", inst.Duration,
		"label", inst.Label,
	)
}

// InstanceRemoved implements Observer.
func (o LogObserver) InstanceRemoved(inst Instance, reason RemoveReason) {
	o.logger().Info("instance removed",
		"instance", inst.ID,
		"message", inst.MessageID,
		"reason", reason.String(),
	)
}

// notification is a buffered observer call.
type notification struct {
	inst    Instance
	removed bool
	reason  RemoveReason
}

func (n notification) deliver(o Observer) {
	if n.removed {
		o.InstanceRemoved(n.inst, n.reason)
		return
	}
	o.InstanceAdded(n.inst)
}
