package engine

import (
	"log/slog"
	"math"
	"time"
)

// Label is the text drawn for a message. The id prefix reserves room for
// the tag the renderer displays in front of the content.
func Label(m Message) string {
	return "[" + m.ID + "] " + m.Content
}

// Spawn computes a traversal for messageID and adds it to the active set.
//
// A pool miss means the message was deleted between the trigger and this
// call; it is an expected race, so Spawn returns false without error.
//
// With force, the instance starts now with zero delay even if the chosen
// lane is still busy. Bulk loads use this so the whole wall appears at
// once instead of staggering; greedy lane choice still spreads a burst
// across lanes.
func (w *Wall) Spawn(messageID string, force bool) (Instance, bool) {
	m, ok := w.pool.Get(messageID)
	if !ok {
		slog.Debug("spawn skipped: message not in pool", "message", messageID)
		return Instance{}, false
	}

	now := w.now()
	label := Label(m)
	width, degraded := measureOrEstimate(w.est, label, w.cfg)
	if degraded {
		slog.Debug("width measurement unavailable, using fallback",
			"message", messageID,
			"width", width,
		)
	}

	// The label must fully enter and fully leave the surface.
	distance := w.surface + width
	duration := seconds(distance / w.cfg.SpeedPxPerSec)
	if duration < w.cfg.MinDuration {
		duration = w.cfg.MinDuration
	}

	// Both instances move at the same speed, so a follower that starts
	// gapTime after this one never closes the distance.
	gapTime := seconds((width + w.cfg.GapPx) / w.cfg.SpeedPxPerSec)

	lane, startAt := w.lanes.Pick(now)
	var delay time.Duration
	if force {
		startAt = now
	} else if startAt.After(now) {
		delay = startAt.Sub(now)
	}
	w.lanes.Commit(lane, startAt.Add(gapTime))

	inst := Instance{
		ID:          w.ids.Next(),
		MessageID:   messageID,
		Label:       label,
		Lane:        lane,
		Offset:      w.cfg.LaneOffset(lane),
		Width:       width,
		Duration:    duration,
		Delay:       delay,
		GapTime:     gapTime,
		ScheduledAt: now,
		StartAt:     startAt,
	}
	w.active.Add(inst)
	w.emit(notification{inst: inst})
	return inst, true
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
