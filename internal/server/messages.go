package server

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/roach88/danmaku/internal/wire"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// IDLength is the length of server-assigned message ids.
const IDLength = 8

// messageList is the live, insertion-ordered message list, capped at limit
// entries with the oldest evicted first.
type messageList struct {
	mu    sync.RWMutex
	limit int
	byID  map[string]wire.Message
	order []string
}

func newMessageList(limit int) *messageList {
	return &messageList{limit: limit, byID: make(map[string]wire.Message)}
}

func (l *messageList) evictLocked() (evicted []string) {
	for len(l.order) > l.limit {
		old := l.order[0]
		l.order = l.order[1:]
		delete(l.byID, old)
		evicted = append(evicted, old)
	}
	return evicted
}

// Remove deletes id and reports whether it was present.
func (l *messageList) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[id]; !ok {
		return false
	}
	delete(l.byID, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

// Reset replaces the contents, keeping only the last limit messages.
func (l *messageList) Reset(msgs []wire.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID = make(map[string]wire.Message, len(msgs))
	l.order = l.order[:0]
	if len(msgs) > l.limit {
		msgs = msgs[len(msgs)-l.limit:]
	}
	for _, m := range msgs {
		if _, ok := l.byID[m.ID]; !ok {
			l.order = append(l.order, m.ID)
		}
		l.byID[m.ID] = m
	}
}

// List returns the messages in insertion order.
func (l *messageList) List() []wire.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]wire.Message, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

// Len returns the number of live messages.
func (l *messageList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Post stores content under a fresh 8-character alphanumeric id not
// currently live, and returns the message and any evicted ids.
func (l *messageList) Post(content string, ts int64) (wire.Message, []string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var id string
	for {
		var err error
		id, err = randomID(IDLength)
		if err != nil {
			return wire.Message{}, nil, err
		}
		if _, taken := l.byID[id]; !taken {
			break
		}
	}
	m := wire.Message{ID: id, Content: content, TS: ts}
	l.byID[id] = m
	l.order = append(l.order, id)
	return m, l.evictLocked(), nil
}

func randomID(n int) (string, error) {
	n64 := big.NewInt(int64(len(idAlphabet)))
	b := make([]byte, n)
	for i := range b {
		k, err := rand.Int(rand.Reader, n64)
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}
		b[i] = idAlphabet[k.Int64()]
	}
	return string(b), nil
}
