/*
leave.go - Leave request, balance ledger and catalog persistence

Implements leave.Store, leave.BalanceStore and leave.CatalogStore.
Daily details and the per-type ledger cells are stored as JSON; the
catalog keeps an explicit position column because the deduction cascade
routes overflow to the first unpaid type in definition order.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clockline/time-engine/core"
	"github.com/clockline/time-engine/leave"
)

// =============================================================================
// LEAVE STORE (leave.Store interface)
// =============================================================================

// InsertLeave persists a new request.
func (s *Store) InsertLeave(ctx context.Context, l *leave.Leave) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	details, err := json.Marshal(l.DailyDetails)
	if err != nil {
		return fmt.Errorf("failed to marshal daily details: %w", err)
	}

	query := `
		INSERT INTO leaves
		(id, user_id, workspace_id, type, status, title, description,
		 start_date, end_date, number_of_days, daily_details,
		 rejection_reason, balance_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		l.ID, l.UserID, l.WorkspaceID, l.Type, string(l.Status),
		l.Title, l.Description,
		formatTime(l.StartDate), formatTime(l.EndDate),
		l.NumberOfDays, string(details),
		nullString(l.RejectionReason), l.BalanceID, formatTime(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert leave: %w", err)
	}
	return nil
}

// GetLeave returns the request or core.ErrLeaveNotFound.
func (s *Store) GetLeave(ctx context.Context, id string) (*leave.Leave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectLeave+" WHERE id = ?", id)
	l, err := scanLeave(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrLeaveNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateLeave replaces the mutable fields.
func (s *Store) UpdateLeave(ctx context.Context, l *leave.Leave) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	details, err := json.Marshal(l.DailyDetails)
	if err != nil {
		return fmt.Errorf("failed to marshal daily details: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE leaves
		SET type = ?, status = ?, title = ?, description = ?,
		    start_date = ?, end_date = ?, number_of_days = ?,
		    daily_details = ?, rejection_reason = ?
		WHERE id = ?`,
		l.Type, string(l.Status), l.Title, l.Description,
		formatTime(l.StartDate), formatTime(l.EndDate), l.NumberOfDays,
		string(details), nullString(l.RejectionReason), l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrLeaveNotFound
	}
	return nil
}

// DeleteLeave removes a request.
func (s *Store) DeleteLeave(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM leaves WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrLeaveNotFound
	}
	return nil
}

// ListLeavesByUser returns the user's requests, newest first.
func (s *Store) ListLeavesByUser(ctx context.Context, userID string) ([]*leave.Leave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeaves(ctx, selectLeave+`
		WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// HasOverlapping reports whether the user already has a pending or
// approved request whose range intersects [start, end].
func (s *Store) HasOverlapping(ctx context.Context, userID string, start, end time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM leaves
		WHERE user_id = ?
		  AND status IN ('pending', 'approved')
		  AND start_date <= ? AND end_date >= ?`,
		userID, formatTime(end), formatTime(start),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check overlapping leaves: %w", err)
	}
	return n > 0, nil
}

// ApprovedLeavesInRange returns the user's approved requests whose
// range intersects [start, end].
func (s *Store) ApprovedLeavesInRange(ctx context.Context, userID string, start, end time.Time) ([]*leave.Leave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeaves(ctx, selectLeave+`
		WHERE user_id = ?
		  AND status = 'approved'
		  AND start_date <= ? AND end_date >= ?
		ORDER BY start_date ASC`,
		userID, formatTime(end), formatTime(start))
}

const selectLeave = `
	SELECT id, user_id, workspace_id, type, status, title, description,
	       start_date, end_date, number_of_days, daily_details,
	       rejection_reason, balance_id, created_at
	FROM leaves`

func (s *Store) queryLeaves(ctx context.Context, query string, args ...any) ([]*leave.Leave, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaves: %w", err)
	}
	defer rows.Close()

	var leaves []*leave.Leave
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

func scanLeave(row rowScanner) (*leave.Leave, error) {
	var (
		l                    leave.Leave
		status               string
		description, reason  sql.NullString
		start, end, created  string
		details              string
	)
	err := row.Scan(&l.ID, &l.UserID, &l.WorkspaceID, &l.Type, &status,
		&l.Title, &description, &start, &end, &l.NumberOfDays,
		&details, &reason, &l.BalanceID, &created)
	if err != nil {
		return nil, err
	}
	l.Status = leave.Status(status)
	l.Description = description.String
	l.RejectionReason = reason.String
	l.StartDate = parseTime(start)
	l.EndDate = parseTime(end)
	l.CreatedAt = parseTime(created)
	if err := json.Unmarshal([]byte(details), &l.DailyDetails); err != nil {
		return nil, fmt.Errorf("failed to unmarshal daily details: %w", err)
	}
	return &l, nil
}

// =============================================================================
// BALANCE STORE (leave.BalanceStore interface)
// =============================================================================

// InsertBalance creates a seeded ledger.
func (s *Store) InsertBalance(ctx context.Context, b *leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cells, err := json.Marshal(b.Balances)
	if err != nil {
		return fmt.Errorf("failed to marshal balance cells: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leave_balances (id, user_id, workspace_id, balances)
		VALUES (?, ?, ?, ?)`,
		b.ID, b.UserID, b.WorkspaceID, string(cells),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("balance already exists for user %s in workspace %s", b.UserID, b.WorkspaceID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert balance: %w", err)
	}
	return nil
}

// GetBalance returns the ledger for (user, workspace) or
// core.ErrBalanceNotFound.
func (s *Store) GetBalance(ctx context.Context, userID, workspaceID string) (*leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, balances
		FROM leave_balances WHERE user_id = ? AND workspace_id = ?`,
		userID, workspaceID)
	return scanBalance(row)
}

// GetBalanceByID returns the ledger or core.ErrBalanceNotFound.
func (s *Store) GetBalanceByID(ctx context.Context, id string) (*leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, balances
		FROM leave_balances WHERE id = ?`, id)
	return scanBalance(row)
}

// UpdateBalance replaces the per-type cells.
func (s *Store) UpdateBalance(ctx context.Context, b *leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cells, err := json.Marshal(b.Balances)
	if err != nil {
		return fmt.Errorf("failed to marshal balance cells: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_balances SET balances = ? WHERE id = ?`,
		string(cells), b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrBalanceNotFound
	}
	return nil
}

func scanBalance(row rowScanner) (*leave.Balance, error) {
	var (
		b     leave.Balance
		cells string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.WorkspaceID, &cells)
	if err == sql.ErrNoRows {
		return nil, core.ErrBalanceNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cells), &b.Balances); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balance cells: %w", err)
	}
	return &b, nil
}

// =============================================================================
// CATALOG STORE (leave.CatalogStore interface)
// =============================================================================

// LeaveTypes returns the workspace catalog in definition order.
func (s *Store) LeaveTypes(ctx context.Context, workspaceID string) ([]leave.Type, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, paid FROM leave_types
		WHERE workspace_id = ? ORDER BY position ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave types: %w", err)
	}
	defer rows.Close()

	var catalog []leave.Type
	for rows.Next() {
		var t leave.Type
		if err := rows.Scan(&t.Name, &t.Paid); err != nil {
			return nil, err
		}
		catalog = append(catalog, t)
	}
	return catalog, rows.Err()
}

// SaveLeaveTypes replaces the workspace catalog, preserving the given
// order as the cascade's definition order.
func (s *Store) SaveLeaveTypes(ctx context.Context, workspaceID string, catalog []leave.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM leave_types WHERE workspace_id = ?", workspaceID); err != nil {
		return err
	}
	for i, t := range catalog {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO leave_types (workspace_id, name, paid, position)
			VALUES (?, ?, ?, ?)`, workspaceID, t.Name, t.Paid, i)
		if err != nil {
			return fmt.Errorf("failed to insert leave type %s: %w", t.Name, err)
		}
	}
	return tx.Commit()
}
