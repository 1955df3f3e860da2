package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Load returns the JSON array stored under key, one element per record.
//
// Load never fails: a key that was never saved, a database error, or a payload
// that is not a JSON array all yield an empty, non-nil slice. Anything other
// than "never saved" is logged at warn level.
func (s *Store) Load(ctx context.Context, key string) []json.RawMessage {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM collections WHERE key = ?`, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []json.RawMessage{}
	}
	if err != nil {
		s.logger.Warn("local load failed, treating as empty", "key", key, "error", err)
		return []json.RawMessage{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		s.logger.Warn("local payload corrupt, treating as empty", "key", key, "error", err)
		return []json.RawMessage{}
	}
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}

// Save replaces the array stored under key.
func (s *Store) Save(ctx context.Context, key string, items []json.RawMessage) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collections (key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, key, string(payload), s.timestamp())
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SaveRaw stores payload under key without validating it.
// Used to seed corrupt payloads in tests and by repair tooling.
func (s *Store) SaveRaw(ctx context.Context, key, payload string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, key, payload, s.timestamp())
	if err != nil {
		return fmt.Errorf("save raw %s: %w", key, err)
	}
	return nil
}
