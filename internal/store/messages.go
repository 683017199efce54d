package store

import (
	"context"
	"fmt"

	"github.com/roach88/danmaku/internal/wire"
)

// PutMessage stores m, replacing any row with the same id. A previously
// deleted id becomes live again.
func (s *Store) PutMessage(ctx context.Context, m wire.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, content, ts, deleted)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			ts = excluded.ts,
			deleted = 0
	`, m.ID, m.Content, m.TS)
	if err != nil {
		return fmt.Errorf("put message %s: %w", m.ID, err)
	}
	return nil
}

// MarkDeleted records a tombstone for id. The tombstone is written even
// when the id was never stored, so a later recovery cannot resurrect it.
func (s *Store) MarkDeleted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, deleted)
		VALUES (?, 1)
		ON CONFLICT(id) DO UPDATE SET deleted = 1
	`, id)
	if err != nil {
		return fmt.Errorf("mark deleted %s: %w", id, err)
	}
	return nil
}

// Recover returns the last limit live messages by ts, oldest first.
// A limit <= 0 returns every live message.
//
// Returns an empty slice (not nil) if nothing is stored.
func (s *Store) Recover(ctx context.Context, limit int) ([]wire.Message, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, ts FROM (
			SELECT id, content, ts
			FROM messages
			WHERE deleted = 0
			ORDER BY ts DESC, id COLLATE BINARY DESC
			LIMIT ?
		)
		ORDER BY ts ASC, id COLLATE BINARY ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []wire.Message{}
	for rows.Next() {
		var m wire.Message
		if err := rows.Scan(&m.ID, &m.Content, &m.TS); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// Count returns the number of live messages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE deleted = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
