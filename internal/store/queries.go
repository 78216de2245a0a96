package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Key-value operations

// Read returns the value stored under (domain, key). ok is false when
// nothing is stored.
func (s *Store) Read(domain, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE domain = ? AND key = ?`, domain, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s.%s: %w", domain, key, wrapSchemaErr(err))
	}
	return value, true, nil
}

// Write stores value under (domain, key); a nil value deletes the entry.
// The write is durable when Write returns.
func (s *Store) Write(domain, key string, value *string) error {
	if value == nil {
		if _, err := s.db.Exec(`DELETE FROM kv WHERE domain = ? AND key = ?`, domain, key); err != nil {
			return fmt.Errorf("failed to clear %s.%s: %w", domain, key, wrapSchemaErr(err))
		}
		return nil
	}

	query := `
		INSERT INTO kv (domain, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(domain, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, domain, key, *value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to write %s.%s: %w", domain, key, wrapSchemaErr(err))
	}
	return nil
}

// Hang event operations

// RecordHangEvent appends an event to the history and returns its id.
func (s *Store) RecordHangEvent(event *HangEvent) (int64, error) {
	query := `
		INSERT INTO hang_events (kind, occurred_at, duration_ms, during_startup, evidence)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query,
		event.Kind,
		event.OccurredAt.UTC().Format(time.RFC3339Nano),
		event.DurationMillis,
		event.DuringStartup,
		event.Evidence,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert hang event: %w", wrapSchemaErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get hang event id: %w", err)
	}
	return id, nil
}

// ListHangEvents returns events newest first. limit <= 0 returns all.
func (s *Store) ListHangEvents(limit int) ([]*HangEvent, error) {
	query := `
		SELECT id, kind, occurred_at, duration_ms, during_startup, evidence
		FROM hang_events
		ORDER BY occurred_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list hang events: %w", wrapSchemaErr(err))
	}
	defer rows.Close()

	var events []*HangEvent
	for rows.Next() {
		var ev HangEvent
		var occurredAt string
		if err := rows.Scan(&ev.ID, &ev.Kind, &occurredAt, &ev.DurationMillis, &ev.DuringStartup, &ev.Evidence); err != nil {
			return nil, fmt.Errorf("failed to scan hang event: %w", err)
		}
		ev.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse occurred_at for event %d: %w", ev.ID, err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hang events: %w", err)
	}

	return events, nil
}

// CountHangEvents returns the number of events of each kind.
func (s *Store) CountHangEvents() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM hang_events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count hang events: %w", wrapSchemaErr(err))
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan hang event count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// DeleteHangEvents removes the whole history and returns how many events
// were deleted.
func (s *Store) DeleteHangEvents() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM hang_events`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete hang events: %w", wrapSchemaErr(err))
	}
	return result.RowsAffected()
}
