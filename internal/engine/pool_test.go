package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_UpsertReportsCreation(t *testing.T) {
	p := NewPool()

	assert.True(t, p.Upsert(Message{ID: "A", Content: "one"}))
	assert.False(t, p.Upsert(Message{ID: "A", Content: "two"}), "same id replaces")

	m, ok := p.Get("A")
	require.True(t, ok)
	assert.Equal(t, "two", m.Content)
	assert.Equal(t, 1, p.Len())
}

func TestPool_RemoveKeepsOrder(t *testing.T) {
	p := NewPool()
	p.Upsert(Message{ID: "A"})
	p.Upsert(Message{ID: "B"})
	p.Upsert(Message{ID: "C"})

	assert.True(t, p.Remove("B"))
	assert.False(t, p.Remove("B"), "second remove reports absence")

	assert.Equal(t, []string{"A", "C"}, p.IDs())
	assert.False(t, p.Has("B"))
}

func TestPool_ReplaceDeduplicatesById(t *testing.T) {
	p := NewPool()
	p.Upsert(Message{ID: "old"})

	p.Replace([]Message{
		{ID: "A", Content: "first"},
		{ID: "B", Content: "b"},
		{ID: "A", Content: "second"},
	})

	assert.Equal(t, []string{"A", "B"}, p.IDs())
	assert.False(t, p.Has("old"))
	m, _ := p.Get("A")
	assert.Equal(t, "second", m.Content, "later occurrence wins")
}

func TestPool_IDsReturnsCopy(t *testing.T) {
	p := NewPool()
	p.Upsert(Message{ID: "A"})

	ids := p.IDs()
	ids[0] = "mutated"

	assert.Equal(t, []string{"A"}, p.IDs())
}
