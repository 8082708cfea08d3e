package backlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Enqueue records a failed submission for later replay. The first retryable
// failure creates the entry with attempt count 1 (the synchronous attempt
// that just failed); later failures for the same item update the existing
// row instead of duplicating it. A dead entry for the item is revived as a
// fresh pending entry, since a new failure means a new watch event.
func (s *Store) Enqueue(ctx context.Context, itemID, title, payloadJSON, errorKind string) (*Entry, error) {
	if itemID == "" {
		return nil, errors.New("item id is required")
	}
	if payloadJSON == "" {
		return nil, errors.New("payload is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	existing, err := s.getByItemIDLocked(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		_, err := s.execWithRetry(ctx,
			`INSERT INTO backlog_entries (
                item_id, title, payload_json, status, attempt_count,
                first_failed_at, last_attempt_at, last_error_kind, created_at, updated_at
            ) VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, ?)`,
			itemID, nullableString(title), payloadJSON, StatusPending,
			timestamp, timestamp, nullableString(errorKind), timestamp, timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert backlog entry: %w", err)
		}
		return s.getByItemIDLocked(ctx, itemID)
	}

	attempts := existing.AttemptCount + 1
	firstFailed := existing.FirstFailedAt.Format(time.RFC3339Nano)
	if existing.Status == StatusDead {
		attempts = 1
		firstFailed = timestamp
	}
	_, err = s.execWithRetry(ctx,
		`UPDATE backlog_entries
         SET title = ?, payload_json = ?, status = ?, attempt_count = ?,
             first_failed_at = ?, last_attempt_at = ?, last_error_kind = ?, updated_at = ?
         WHERE item_id = ?`,
		nullableString(title), payloadJSON, StatusPending, attempts,
		firstFailed, timestamp, nullableString(errorKind), timestamp, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("update backlog entry: %w", err)
	}
	return s.getByItemIDLocked(ctx, itemID)
}

// GetByItemID fetches the entry for an item, nil when absent.
func (s *Store) GetByItemID(ctx context.Context, itemID string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getByItemIDLocked(ctx, itemID)
}

func (s *Store) getByItemIDLocked(ctx context.Context, itemID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM backlog_entries WHERE item_id = ?`, itemID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backlog entry: %w", err)
	}
	return entry, nil
}

// List returns entries filtered by status set (or all entries when no status
// is provided), in insertion order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	baseQuery := `SELECT ` + entryColumns + ` FROM backlog_entries`
	orderClause := ` ORDER BY id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list backlog entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the number of pending entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM backlog_entries WHERE status = ?`, StatusPending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count backlog entries: %w", err)
	}
	return count, nil
}

// Health aggregates backlog counts per state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM backlog_entries GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("backlog health: %w", err)
	}
	defer rows.Close()

	health := HealthSummary{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusDead:
			health.Dead += count
		}
	}
	return health, rows.Err()
}

func (s *Store) incrementAttempt(ctx context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`UPDATE backlog_entries
         SET attempt_count = attempt_count + 1, last_attempt_at = ?, updated_at = ?
         WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return 0, fmt.Errorf("increment attempt: %w", err)
	}

	var attempts int
	if err := s.db.QueryRowContext(ctx, `SELECT attempt_count FROM backlog_entries WHERE id = ?`, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("read attempt count: %w", err)
	}
	return attempts, nil
}

func (s *Store) recordFailure(ctx context.Context, id int64, errorKind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`UPDATE backlog_entries SET last_error_kind = ?, updated_at = ? WHERE id = ?`,
		nullableString(errorKind), now, id,
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

func (s *Store) markDead(ctx context.Context, id int64, errorKind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`UPDATE backlog_entries SET status = ?, last_error_kind = ?, updated_at = ? WHERE id = ?`,
		StatusDead, nullableString(errorKind), now, id,
	)
	if err != nil {
		return fmt.Errorf("mark entry dead: %w", err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.execWithRetry(ctx, `DELETE FROM backlog_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove backlog entry: %w", err)
	}
	return nil
}

// ClearDead removes dead-lettered entries.
func (s *Store) ClearDead(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execWithRetry(ctx, `DELETE FROM backlog_entries WHERE status = ?`, StatusDead)
	if err != nil {
		return 0, fmt.Errorf("clear dead entries: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execWithRetry(ctx, `DELETE FROM backlog_entries`)
	if err != nil {
		return 0, fmt.Errorf("clear backlog: %w", err)
	}
	return res.RowsAffected()
}

const entryColumns = "id, item_id, title, payload_json, status, attempt_count, first_failed_at, last_attempt_at, last_error_kind, created_at, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id            int64
		itemID        string
		title         sql.NullString
		payload       string
		statusStr     string
		attempts      int
		firstFailed   sql.NullString
		lastAttempt   sql.NullString
		lastErrorKind sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id, &itemID, &title, &payload, &statusStr, &attempts,
		&firstFailed, &lastAttempt, &lastErrorKind, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:            id,
		ItemID:        itemID,
		Title:         title.String,
		PayloadJSON:   payload,
		Status:        Status(statusStr),
		AttemptCount:  attempts,
		LastErrorKind: lastErrorKind.String,
	}
	if t, err := parseTimeString(firstFailed.String); err == nil {
		entry.FirstFailedAt = t
	}
	if lastAttempt.Valid {
		if t, err := parseTimeString(lastAttempt.String); err == nil {
			entry.LastAttemptAt = &t
		}
	}
	if t, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = t
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
