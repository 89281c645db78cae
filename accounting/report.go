/*
report.go - Monthly report generation and persistence

GENERATION:
  One workspace-wide computation per (year, month): ideal hours once,
  then a per-user fan-out loading approved leaves and entries and
  folding them into report rows. Users are independent, so the fan-out
  runs concurrently.

PERSISTENCE:
  Reports are upserted by (month, year). The first save also banks each
  user's overtime into their "overtime" leave balance, in quarter-day
  units of the active rule's working day. Re-saving replaces the rows
  and ideal hours in place WITHOUT repeating the accrual; that guard is
  what makes the operation safe to call repeatedly.

  Report and balances are separate writes with no wrapping transaction;
  a failure mid-accrual can leave some balances credited and the report
  absent. Re-running the save after such a failure repeats the accrual,
  which is the known gap inherited from the system this replaces.
*/
package accounting

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/clockline/time-engine/core"
	"github.com/clockline/time-engine/leave"
	"github.com/clockline/time-engine/tracking"
)

// =============================================================================
// STORES - Persistence interfaces implemented by store/sqlite
// =============================================================================

// RuleStore exposes workspace calendar rules.
type RuleStore interface {
	// ActiveRule returns the workspace's single active rule or
	// core.ErrRuleNotFound.
	ActiveRule(ctx context.Context, workspaceID string) (Rule, error)
}

// HolidayStore exposes the workspace holiday calendar.
type HolidayStore interface {
	// HolidaysInRange returns holidays with Date in [from, to).
	HolidaysInRange(ctx context.Context, workspaceID string, from, to time.Time) ([]Holiday, error)
}

// Directory lists workspace members.
type Directory interface {
	ListMembers(ctx context.Context, workspaceID string) ([]Member, error)
}

// EntrySource reads a user's entries for a date range.
type EntrySource interface {
	// UserEntries returns entries with CreatedAt in [from, to].
	UserEntries(ctx context.Context, userID string, from, to time.Time) ([]*tracking.Entry, error)
}

// ReportStore persists monthly report snapshots.
type ReportStore interface {
	// GetReport returns the report for (month, year), or (nil, nil)
	// when none has been saved yet.
	GetReport(ctx context.Context, month time.Month, year int) (*MonthlyReport, error)

	// InsertReport creates a new snapshot.
	InsertReport(ctx context.Context, r *MonthlyReport) error

	// UpdateReport replaces the rows and ideal-hours fields in place.
	UpdateReport(ctx context.Context, r *MonthlyReport) error
}

// Engine computes and persists monthly reports.
type Engine struct {
	rules    RuleStore
	holidays HolidayStore
	users    Directory
	entries  EntrySource
	leaves   leave.Store
	catalog  leave.CatalogStore
	balances leave.BalanceStore
	reports  ReportStore
}

// NewEngine wires the accounting engine to its stores.
func NewEngine(rules RuleStore, holidays HolidayStore, users Directory, entries EntrySource, leaves leave.Store, catalog leave.CatalogStore, balances leave.BalanceStore, reports ReportStore) *Engine {
	return &Engine{
		rules:    rules,
		holidays: holidays,
		users:    users,
		entries:  entries,
		leaves:   leaves,
		catalog:  catalog,
		balances: balances,
		reports:  reports,
	}
}

// Generate computes the monthly report for a workspace. start/end bound
// the entry and leave queries (normally the first and last instant of
// the month, supplied by the caller).
func (e *Engine) Generate(ctx context.Context, workspaceID string, year int, month time.Month, start, end time.Time) (*ReportPayload, error) {
	rule, err := e.rules.ActiveRule(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	holidays, err := e.holidays.HolidaysInRange(ctx, workspaceID, start, end)
	if err != nil {
		return nil, err
	}
	catalog, err := e.catalog.LeaveTypes(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	members, err := e.users.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	ideal := CalculateIdealMonthlyHours(rule, holidays, year, month)

	rows := make([]UserMonthlyReport, len(members))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range members {
		i, m := i, m
		g.Go(func() error {
			approved, err := e.leaves.ApprovedLeavesInRange(gctx, m.ID, start, end)
			if err != nil {
				return err
			}
			entries, err := e.entries.UserEntries(gctx, m.ID, start, end)
			if err != nil {
				return err
			}
			row, err := ComputeUserMonthly(m, catalog, ideal, rule, approved, entries)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ReportPayload{Ideal: ideal, Rows: rows}, nil
}

// Save upserts the report for (month, year). Overtime accrual into the
// users' leave balances happens only when the report is first created.
func (e *Engine) Save(ctx context.Context, workspaceID string, month time.Month, year int, payload *ReportPayload) (*MonthlyReport, error) {
	existing, err := e.reports.GetReport(ctx, month, year)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.Ideal = payload.Ideal
		existing.Rows = payload.Rows
		if err := e.reports.UpdateReport(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update report: %w", err)
		}
		return existing, nil
	}

	rule, err := e.rules.ActiveRule(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := e.accrueOvertime(ctx, workspaceID, rule, payload.Rows); err != nil {
		return nil, err
	}

	report := &MonthlyReport{
		ID:              reportID(),
		WorkspaceID:     workspaceID,
		Month:           month,
		Year:            year,
		Ideal:           payload.Ideal,
		Rows:            payload.Rows,
		OvertimeAccrued: true,
	}
	if err := e.reports.InsertReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	return report, nil
}

// accrueOvertime converts each row's overtime into quarter-day units of
// the active rule's working day and adds them to the user's "overtime"
// balance. Users without a ledger in this workspace are skipped.
func (e *Engine) accrueOvertime(ctx context.Context, workspaceID string, rule Rule, rows []UserMonthlyReport) error {
	dayWorkSeconds := decimal.NewFromInt(int64(rule.WorkingHours) * 3600)

	for _, row := range rows {
		credit := QuarterDayCredit(row.Overtime.TotalSeconds(), dayWorkSeconds)
		if credit.IsZero() {
			continue
		}

		balance, err := e.balances.GetBalance(ctx, row.UserID, workspaceID)
		if errors.Is(err, core.ErrBalanceNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load balance for user %s: %w", row.UserID, err)
		}
		cell := balance.Get(leave.OvertimeType)
		if cell == nil {
			cell = &leave.TypeBalance{Value: decimal.Zero, Consumed: decimal.Zero}
			balance.Balances[leave.OvertimeType] = cell
		}
		cell.Value = cell.Value.Add(credit).Round(2)

		if err := e.balances.UpdateBalance(ctx, balance); err != nil {
			return fmt.Errorf("failed to accrue overtime for user %s: %w", row.UserID, err)
		}
	}
	return nil
}

// QuarterDayCredit converts overtime seconds into day units of the
// given working day, rounded to the nearest quarter day.
func QuarterDayCredit(overtimeSeconds int64, dayWorkSeconds decimal.Decimal) decimal.Decimal {
	if dayWorkSeconds.IsZero() {
		return decimal.Zero
	}
	ratio := decimal.NewFromInt(overtimeSeconds).Div(dayWorkSeconds).Round(2)
	return ratio.Mul(decimal.NewFromInt(4)).Round(0).Div(decimal.NewFromInt(4))
}

func reportID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
