/*
Package sqlite provides the SQLite-backed implementation of every store
interface in the engine.

PURPOSE:
  One Store implements tracking (entries, timers), leave (requests,
  balances, catalogs), and accounting (rules, holidays, members,
  reports) persistence. In production the same patterns apply to
  PostgreSQL with minor dialect changes.

INTERFACES IMPLEMENTED:
  tracking.EntryStore / tracking.TimerStore
  leave.Store / leave.BalanceStore / leave.CatalogStore
  accounting.RuleStore / HolidayStore / Directory / EntrySource / ReportStore

CONCURRENCY:
  WAL mode for reader/writer concurrency plus a sync.RWMutex around the
  connection. The timer table carries a version column: transitions are
  conditional updates (WHERE version = ?) so the double-start race loses
  deterministically instead of writing twice.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/engine.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). Use ":memory:" for tests.
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite allows a single writer anyway, and each
	// ":memory:" connection would otherwise get its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Time entries: interval pairs stored as JSON timestamp arrays
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workspace_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		title TEXT,
		start_times TEXT NOT NULL,
		end_times TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_user_created
		ON entries(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_workspace
		ON entries(workspace_id);

	-- Timers: one aggregate per user, version column for compare-and-set
	CREATE TABLE IF NOT EXISTS timers (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		is_running BOOLEAN NOT NULL DEFAULT FALSE,
		current_entry_id TEXT,
		version INTEGER NOT NULL DEFAULT 0
	);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workspace_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		title TEXT NOT NULL,
		description TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		number_of_days REAL NOT NULL,
		daily_details TEXT NOT NULL,
		rejection_reason TEXT,
		balance_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leaves_user_created
		ON leaves(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_leaves_user_status_range
		ON leaves(user_id, status, start_date, end_date);

	-- Leave balances: per-type cells as JSON, one ledger per user+workspace
	CREATE TABLE IF NOT EXISTS leave_balances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workspace_id TEXT NOT NULL,
		balances TEXT NOT NULL,
		UNIQUE(user_id, workspace_id)
	);

	-- Workspace leave-type catalog; position preserves definition order
	-- (the deduction cascade routes overflow to the FIRST unpaid type)
	CREATE TABLE IF NOT EXISTS leave_types (
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT TRUE,
		position INTEGER NOT NULL,
		PRIMARY KEY (workspace_id, name)
	);

	-- Workspace calendar rules
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT 'default',
		working_hours INTEGER NOT NULL DEFAULT 8,
		working_days INTEGER NOT NULL DEFAULT 5,
		week_days TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_rules_workspace_active
		ON rules(workspace_id, is_active);

	-- Holidays
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		date TEXT NOT NULL,
		type TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_workspace_date
		ON holidays(workspace_id, date);

	-- Workspace members (identity is owned by the out-of-scope auth
	-- layer; the engine only needs id + display name)
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_workspace
		ON members(workspace_id);

	-- Monthly report snapshots, looked up by (month, year)
	CREATE TABLE IF NOT EXISTS monthly_reports (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		ideal TEXT NOT NULL,
		rows TEXT NOT NULL,
		overtime_accrued BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(month, year)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Helper functions

// timeLayout pads nanoseconds to fixed width so lexicographic
// comparison on TEXT columns matches chronological order. RFC3339Nano
// drops trailing zeros and would misorder timestamps within a second.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
