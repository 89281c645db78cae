/*
tracking.go - Entry and timer persistence

Implements tracking.EntryStore, tracking.TimerStore and
accounting.EntrySource. Interval sequences are stored as JSON arrays of
RFC3339 timestamps; the timer transition is a conditional UPDATE on the
version column.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clockline/time-engine/core"
	"github.com/clockline/time-engine/tracking"
)

// =============================================================================
// ENTRY STORE (tracking.EntryStore interface)
// =============================================================================

// InsertEntry persists a new entry.
func (s *Store) InsertEntry(ctx context.Context, e *tracking.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	starts, ends, err := marshalIntervals(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO entries
		(id, user_id, workspace_id, project_id, title, start_times, end_times, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.WorkspaceID, e.ProjectID, e.Title,
		starts, ends, e.DurationSeconds, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// GetEntry returns the entry or core.ErrEntryNotFound.
func (s *Store) GetEntry(ctx context.Context, id string) (*tracking.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, project_id, title, start_times, end_times, duration_seconds, created_at
		FROM entries WHERE id = ?`, id)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEntry replaces the interval sequences, duration and title.
func (s *Store) UpdateEntry(ctx context.Context, e *tracking.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	starts, ends, err := marshalIntervals(e)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE entries
		SET title = ?, start_times = ?, end_times = ?, duration_seconds = ?
		WHERE id = ?`,
		e.Title, starts, ends, e.DurationSeconds, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrEntryNotFound
	}
	return nil
}

// DeleteEntry removes an entry.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	return err
}

// ListEntries returns the user's entries with CreatedAt in [from, to),
// newest first.
func (s *Store) ListEntries(ctx context.Context, userID, workspaceID string, from, to time.Time) ([]*tracking.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, workspace_id, project_id, title, start_times, end_times, duration_seconds, created_at
		FROM entries
		WHERE user_id = ? AND workspace_id = ?
		  AND created_at >= ? AND created_at < ?
		ORDER BY created_at DESC
	`
	return s.queryEntries(ctx, query, userID, workspaceID, formatTime(from), formatTime(to))
}

// UserEntries returns entries with CreatedAt in [from, to], oldest
// first (accounting.EntrySource interface).
func (s *Store) UserEntries(ctx context.Context, userID string, from, to time.Time) ([]*tracking.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, workspace_id, project_id, title, start_times, end_times, duration_seconds, created_at
		FROM entries
		WHERE user_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC
	`
	return s.queryEntries(ctx, query, userID, formatTime(from), formatTime(to))
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]*tracking.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*tracking.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*tracking.Entry, error) {
	var (
		e             tracking.Entry
		title         sql.NullString
		starts, ends  string
		createdAt     string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.WorkspaceID, &e.ProjectID, &title,
		&starts, &ends, &e.DurationSeconds, &createdAt)
	if err != nil {
		return nil, err
	}
	e.Title = title.String
	e.CreatedAt = parseTime(createdAt)
	if e.StartTimes, err = unmarshalTimes(starts); err != nil {
		return nil, err
	}
	if e.EndTimes, err = unmarshalTimes(ends); err != nil {
		return nil, err
	}
	return &e, nil
}

func marshalIntervals(e *tracking.Entry) (starts, ends string, err error) {
	sb, err := marshalTimes(e.StartTimes)
	if err != nil {
		return "", "", err
	}
	eb, err := marshalTimes(e.EndTimes)
	if err != nil {
		return "", "", err
	}
	return sb, eb, nil
}

func marshalTimes(ts []time.Time) (string, error) {
	formatted := make([]string, len(ts))
	for i, t := range ts {
		formatted[i] = formatTime(t)
	}
	b, err := json.Marshal(formatted)
	if err != nil {
		return "", fmt.Errorf("failed to marshal timestamps: %w", err)
	}
	return string(b), nil
}

func unmarshalTimes(raw string) ([]time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	var formatted []string
	if err := json.Unmarshal([]byte(raw), &formatted); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timestamps: %w", err)
	}
	ts := make([]time.Time, len(formatted))
	for i, f := range formatted {
		ts[i] = parseTime(f)
	}
	return ts, nil
}

// =============================================================================
// TIMER STORE (tracking.TimerStore interface)
// =============================================================================

// InsertTimer creates the per-user aggregate.
func (s *Store) InsertTimer(ctx context.Context, t *tracking.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timers (id, user_id, is_running, current_entry_id, version)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.IsRunning, nullString(t.CurrentEntryID), t.Version,
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("timer already exists for user %s", t.UserID)
	}
	return err
}

// GetTimerByUser returns the user's timer or core.ErrTimerNotFound.
func (s *Store) GetTimerByUser(ctx context.Context, userID string) (*tracking.Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		t       tracking.Timer
		current sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, is_running, current_entry_id, version
		FROM timers WHERE user_id = ?`, userID,
	).Scan(&t.ID, &t.UserID, &t.IsRunning, &current, &t.Version)

	if err == sql.ErrNoRows {
		return nil, core.ErrTimerNotFound
	}
	if err != nil {
		return nil, err
	}
	t.CurrentEntryID = current.String
	return &t, nil
}

// SwapTimer persists the transition iff the stored version equals
// expectedVersion. A zero-row update means another writer won the race.
func (s *Store) SwapTimer(ctx context.Context, t *tracking.Timer, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE timers
		SET is_running = ?, current_entry_id = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		t.IsRunning, nullString(t.CurrentEntryID), t.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update timer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrVersionConflict
	}
	t.Version = expectedVersion + 1
	return nil
}
