package engine

import "time"

// Instance is one timed traversal of one message across the surface.
//
// MessageID is a back-reference only. Successive loops of the same
// message produce distinct instances with increasing IDs.
type Instance struct {
	ID        int64
	MessageID string
	Label     string

	Lane   int
	Offset float64 // vertical offset in px
	Width  float64 // measured label width in px

	Duration time.Duration // time to cross the surface
	Delay    time.Duration // time before motion starts, from ScheduledAt
	GapTime  time.Duration // same-lane exclusion window from StartAt

	ScheduledAt time.Time
	StartAt     time.Time
}

// EndAt is the time the traversal finishes.
func (i Instance) EndAt() time.Time {
	return i.StartAt.Add(i.Duration)
}

// ActiveSet is the ordered collection of in-flight instances.
//
// Order is creation order. Lookups by instance ID are O(1); removals by
// message ID scan the set, which stays small (bounded by pool size plus
// transient loop overlaps).
type ActiveSet struct {
	items []Instance
	index map[int64]int
}

// NewActiveSet creates an empty set.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{index: make(map[int64]int)}
}

// Add appends inst. Adding an existing ID replaces it in place.
func (s *ActiveSet) Add(inst Instance) {
	if i, ok := s.index[inst.ID]; ok {
		s.items[i] = inst
		return
	}
	s.index[inst.ID] = len(s.items)
	s.items = append(s.items, inst)
}

// Get returns the instance with the given ID.
func (s *ActiveSet) Get(id int64) (Instance, bool) {
	i, ok := s.index[id]
	if !ok {
		return Instance{}, false
	}
	return s.items[i], true
}

// Remove deletes the instance with the given ID.
func (s *ActiveSet) Remove(id int64) (Instance, bool) {
	i, ok := s.index[id]
	if !ok {
		return Instance{}, false
	}
	inst := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.reindex(i)
	delete(s.index, id)
	return inst, true
}

// RemoveMessage deletes every instance referencing messageID and returns
// them in creation order.
func (s *ActiveSet) RemoveMessage(messageID string) []Instance {
	var removed []Instance
	kept := s.items[:0]
	for _, inst := range s.items {
		if inst.MessageID == messageID {
			removed = append(removed, inst)
			delete(s.index, inst.ID)
			continue
		}
		kept = append(kept, inst)
	}
	s.items = kept
	s.reindex(0)
	return removed
}

// Clear empties the set and returns what it held.
func (s *ActiveSet) Clear() []Instance {
	out := s.items
	s.items = nil
	s.index = make(map[int64]int)
	return out
}

// ByMessage returns the instances referencing messageID.
func (s *ActiveSet) ByMessage(messageID string) []Instance {
	var out []Instance
	for _, inst := range s.items {
		if inst.MessageID == messageID {
			out = append(out, inst)
		}
	}
	return out
}

// All returns a copy of the set in creation order.
func (s *ActiveSet) All() []Instance {
	out := make([]Instance, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of instances.
func (s *ActiveSet) Len() int {
	return len(s.items)
}

func (s *ActiveSet) reindex(from int) {
	for i := from; i < len(s.items); i++ {
		s.index[s.items[i].ID] = i
	}
}
