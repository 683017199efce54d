package engine

import "time"

// Message is the authoritative unit shown on the wall. Two messages with
// the same ID are the same logical entity.
type Message struct {
	ID        string
	Content   string
	CreatedAt time.Time
}

// Pool is the local mirror of currently existing messages, keyed by ID.
//
// It reflects the last known server set plus optimistic local insertions
// not yet contradicted by a server event. Iteration order is insertion
// order so bulk loads spawn deterministically.
//
// Pool is not safe for concurrent use; the engine owns it.
type Pool struct {
	byID  map[string]Message
	order []string
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{byID: make(map[string]Message)}
}

// Upsert inserts or replaces m by ID and reports whether the ID was new.
func (p *Pool) Upsert(m Message) (created bool) {
	if _, ok := p.byID[m.ID]; !ok {
		p.order = append(p.order, m.ID)
		created = true
	}
	p.byID[m.ID] = m
	return created
}

// Remove deletes id and reports whether it was present.
func (p *Pool) Remove(id string) bool {
	if _, ok := p.byID[id]; !ok {
		return false
	}
	delete(p.byID, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Replace clears the pool and repopulates it from a snapshot. A later
// occurrence of an ID replaces the earlier one in place.
func (p *Pool) Replace(msgs []Message) {
	p.byID = make(map[string]Message, len(msgs))
	p.order = p.order[:0]
	for _, m := range msgs {
		p.Upsert(m)
	}
}

// Get returns the message for id.
func (p *Pool) Get(id string) (Message, bool) {
	m, ok := p.byID[id]
	return m, ok
}

// Has reports whether id is in the pool.
func (p *Pool) Has(id string) bool {
	_, ok := p.byID[id]
	return ok
}

// Len returns the number of messages.
func (p *Pool) Len() int {
	return len(p.byID)
}

// IDs returns the message IDs in insertion order.
func (p *Pool) IDs() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}
