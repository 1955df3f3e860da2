package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Op is the kind of remote write queued in the outbox.
type Op string

const (
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// OutboxEntry is one queued remote write.
type OutboxEntry struct {
	ID         int64
	Collection string
	RecordID   string
	Op         Op
	Payload    json.RawMessage // nil for OpRemove
	Attempts   int
	LastError  string
	CreatedAt  string
}

// Enqueue appends a remote write and returns its outbox id.
func (s *Store) Enqueue(ctx context.Context, collection, recordID string, op Op, payload json.RawMessage) (int64, error) {
	var p sql.NullString
	if payload != nil {
		p = sql.NullString{String: string(payload), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox (collection, record_id, op, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, collection, recordID, string(op), p, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("enqueue %s/%s: %w", collection, recordID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue %s/%s: %w", collection, recordID, err)
	}
	return id, nil
}

// Pending returns up to limit pending entries, oldest first.
func (s *Store) Pending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	return s.queryEntries(ctx, "pending", limit)
}

// DeadLetters returns up to limit entries that exhausted their attempts, oldest first.
func (s *Store) DeadLetters(ctx context.Context, limit int) ([]OutboxEntry, error) {
	return s.queryEntries(ctx, "dead", limit)
}

func (s *Store) queryEntries(ctx context.Context, status string, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection, record_id, op, payload, attempts, last_error, created_at
		FROM outbox
		WHERE status = ?
		ORDER BY id ASC
		LIMIT ?
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var (
			e       OutboxEntry
			op      string
			payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Collection, &e.RecordID, &op, &payload, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		e.Op = Op(op)
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// PendingCount returns the number of entries still waiting for delivery.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE status = 'pending'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

// MarkDelivered removes a delivered entry.
func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark delivered %d: %w", id, err)
	}
	return nil
}

// MarkAttempt records a failed delivery attempt and returns the new attempt count.
func (s *Store) MarkAttempt(ctx context.Context, id int64, cause error) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		UPDATE outbox SET attempts = attempts + 1, last_error = ?
		WHERE id = ?
		RETURNING attempts
	`, cause.Error(), id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("mark attempt %d: %w", id, err)
	}
	return attempts, nil
}

// MarkDead moves an entry to the dead-letter state. Dead entries are never retried.
func (s *Store) MarkDead(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE outbox SET status = 'dead' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark dead %d: %w", id, err)
	}
	return nil
}

// DiscardPending drops every pending entry. Used when the remote is disconnected.
func (s *Store) DiscardPending(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE status = 'pending'`)
	if err != nil {
		return 0, fmt.Errorf("discard pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("discard pending: %w", err)
	}
	return n, nil
}
