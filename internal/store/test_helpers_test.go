package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/danmaku/internal/wire"
)

// createTestStore opens a store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func msg(id, content string, ts int64) wire.Message {
	return wire.Message{ID: id, Content: content, TS: ts}
}
