package tracking

import (
	"context"
	"time"
)

// =============================================================================
// STORES - Persistence interfaces implemented by store/sqlite
// =============================================================================

// EntryStore persists time entries.
type EntryStore interface {
	// InsertEntry persists a new entry.
	InsertEntry(ctx context.Context, e *Entry) error

	// GetEntry returns the entry or core.ErrEntryNotFound.
	GetEntry(ctx context.Context, id string) (*Entry, error)

	// UpdateEntry replaces the interval sequences, duration and title.
	UpdateEntry(ctx context.Context, e *Entry) error

	// DeleteEntry removes an entry. Used only as a compensating write
	// when a timer compare-and-set loses the start race.
	DeleteEntry(ctx context.Context, id string) error

	// ListEntries returns the user's entries with CreatedAt in
	// [from, to), newest first.
	ListEntries(ctx context.Context, userID, workspaceID string, from, to time.Time) ([]*Entry, error)
}

// TimerStore persists the per-user timer aggregate.
type TimerStore interface {
	// GetTimerByUser returns the user's timer or core.ErrTimerNotFound.
	GetTimerByUser(ctx context.Context, userID string) (*Timer, error)

	// InsertTimer creates the aggregate (one per user, at signup).
	InsertTimer(ctx context.Context, t *Timer) error

	// SwapTimer persists the transition iff the stored version equals
	// expectedVersion, then bumps Version. Returns
	// core.ErrVersionConflict when the compare-and-set loses.
	SwapTimer(ctx context.Context, t *Timer, expectedVersion int64) error
}
