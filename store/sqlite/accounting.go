/*
accounting.go - Rule, holiday, member and report persistence

Implements accounting.RuleStore, HolidayStore, Directory and
ReportStore. Report rows and ideal hours are stored as JSON snapshots;
the report lookup key is (month, year).
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clockline/time-engine/accounting"
	"github.com/clockline/time-engine/core"
)

// =============================================================================
// RULE STORE (accounting.RuleStore interface)
// =============================================================================

// ActiveRule returns the workspace's active rule or core.ErrRuleNotFound.
func (s *Store) ActiveRule(ctx context.Context, workspaceID string) (accounting.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		r        accounting.Rule
		weekDays string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, title, working_hours, working_days, week_days, is_active
		FROM rules
		WHERE workspace_id = ? AND is_active = TRUE
		LIMIT 1`, workspaceID,
	).Scan(&r.ID, &r.WorkspaceID, &r.Title, &r.WorkingHours, &r.WorkingDays, &weekDays, &r.IsActive)

	if err == sql.ErrNoRows {
		return accounting.Rule{}, core.ErrRuleNotFound
	}
	if err != nil {
		return accounting.Rule{}, err
	}
	if err := json.Unmarshal([]byte(weekDays), &r.WeekDays); err != nil {
		return accounting.Rule{}, fmt.Errorf("failed to unmarshal week days: %w", err)
	}
	return r, nil
}

// SaveRule upserts a rule. Activating a rule deactivates the
// workspace's other rules so ActiveRule stays unambiguous.
func (s *Store) SaveRule(ctx context.Context, r accounting.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	weekDays, err := json.Marshal(r.WeekDays)
	if err != nil {
		return fmt.Errorf("failed to marshal week days: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if r.IsActive {
		if _, err := tx.ExecContext(ctx, `
			UPDATE rules SET is_active = FALSE
			WHERE workspace_id = ? AND id != ?`, r.WorkspaceID, r.ID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rules (id, workspace_id, title, working_hours, working_days, week_days, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			working_hours = excluded.working_hours,
			working_days = excluded.working_days,
			week_days = excluded.week_days,
			is_active = excluded.is_active`,
		r.ID, r.WorkspaceID, r.Title, r.WorkingHours, r.WorkingDays, string(weekDays), r.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return tx.Commit()
}

// =============================================================================
// HOLIDAY STORE (accounting.HolidayStore interface)
// =============================================================================

// HolidaysInRange returns holidays with Date in [from, to).
func (s *Store) HolidaysInRange(ctx context.Context, workspaceID string, from, to time.Time) ([]accounting.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, title, description, date, type
		FROM holidays
		WHERE workspace_id = ? AND date >= ? AND date < ?
		ORDER BY date ASC`,
		workspaceID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []accounting.Holiday
	for rows.Next() {
		var (
			h           accounting.Holiday
			description sql.NullString
			date, typ   string
		)
		if err := rows.Scan(&h.ID, &h.WorkspaceID, &h.Title, &description, &date, &typ); err != nil {
			return nil, err
		}
		h.Description = description.String
		h.Date = parseTime(date)
		h.Type = accounting.HolidayType(typ)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// SaveHoliday upserts a holiday.
func (s *Store) SaveHoliday(ctx context.Context, h accounting.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, workspace_id, title, description, date, type)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			date = excluded.date,
			type = excluded.type`,
		h.ID, h.WorkspaceID, h.Title, nullString(h.Description),
		formatTime(h.Date), string(h.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

// DeleteHoliday removes a holiday from the calendar.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// =============================================================================
// DIRECTORY (accounting.Directory interface)
// =============================================================================

// ListMembers returns the workspace's members.
func (s *Store) ListMembers(ctx context.Context, workspaceID string) ([]accounting.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM members
		WHERE workspace_id = ? ORDER BY name ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []accounting.Member
	for rows.Next() {
		var m accounting.Member
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// SaveMember upserts a workspace member.
func (s *Store) SaveMember(ctx context.Context, workspaceID string, m accounting.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, workspace_id, name)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		m.ID, workspaceID, m.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

// =============================================================================
// REPORT STORE (accounting.ReportStore interface)
// =============================================================================

// GetReport returns the report for (month, year), or (nil, nil) when
// none has been saved yet.
func (s *Store) GetReport(ctx context.Context, month time.Month, year int) (*accounting.MonthlyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		r                  accounting.MonthlyReport
		monthInt           int
		ideal, reportRows  string
		created, updated   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, month, year, ideal, rows, overtime_accrued, created_at, updated_at
		FROM monthly_reports WHERE month = ? AND year = ?`,
		int(month), year,
	).Scan(&r.ID, &r.WorkspaceID, &monthInt, &r.Year, &ideal, &reportRows,
		&r.OvertimeAccrued, &created, &updated)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Month = time.Month(monthInt)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	if err := json.Unmarshal([]byte(ideal), &r.Ideal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ideal hours: %w", err)
	}
	if err := json.Unmarshal([]byte(reportRows), &r.Rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report rows: %w", err)
	}
	return &r, nil
}

// InsertReport creates a new snapshot.
func (s *Store) InsertReport(ctx context.Context, r *accounting.MonthlyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ideal, reportRows, err := marshalReport(r)
	if err != nil {
		return err
	}

	now := formatTime(time.Now())
	r.CreatedAt = parseTime(now)
	r.UpdatedAt = r.CreatedAt

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO monthly_reports
		(id, workspace_id, month, year, ideal, rows, overtime_accrued, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.WorkspaceID, int(r.Month), r.Year, ideal, reportRows,
		r.OvertimeAccrued, now, now,
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("report already exists for %s %d", r.Month, r.Year)
	}
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// UpdateReport replaces the rows and ideal-hours fields in place.
func (s *Store) UpdateReport(ctx context.Context, r *accounting.MonthlyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ideal, reportRows, err := marshalReport(r)
	if err != nil {
		return err
	}

	now := formatTime(time.Now())
	r.UpdatedAt = parseTime(now)

	res, err := s.db.ExecContext(ctx, `
		UPDATE monthly_reports
		SET ideal = ?, rows = ?, updated_at = ?
		WHERE id = ?`,
		ideal, reportRows, now, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("report %s not found", r.ID)
	}
	return nil
}

func marshalReport(r *accounting.MonthlyReport) (ideal, rows string, err error) {
	ib, err := json.Marshal(r.Ideal)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal ideal hours: %w", err)
	}
	rb, err := json.Marshal(r.Rows)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal report rows: %w", err)
	}
	return string(ib), string(rb), nil
}
