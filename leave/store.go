package leave

import (
	"context"
	"time"
)

// =============================================================================
// STORES - Persistence interfaces implemented by store/sqlite
// =============================================================================

// Store persists leave requests.
type Store interface {
	// InsertLeave persists a new request.
	InsertLeave(ctx context.Context, l *Leave) error

	// GetLeave returns the request or core.ErrLeaveNotFound.
	GetLeave(ctx context.Context, id string) (*Leave, error)

	// UpdateLeave replaces the mutable fields (dates, details, status,
	// rejection reason).
	UpdateLeave(ctx context.Context, l *Leave) error

	// DeleteLeave removes a request.
	DeleteLeave(ctx context.Context, id string) error

	// ListLeavesByUser returns the user's requests, newest first.
	ListLeavesByUser(ctx context.Context, userID string) ([]*Leave, error)

	// HasOverlapping reports whether the user already has a pending or
	// approved request whose date range intersects [start, end].
	HasOverlapping(ctx context.Context, userID string, start, end time.Time) (bool, error)

	// ApprovedLeavesInRange returns the user's approved requests whose
	// date range intersects [start, end].
	ApprovedLeavesInRange(ctx context.Context, userID string, start, end time.Time) ([]*Leave, error)
}

// BalanceStore persists the per-user leave ledgers.
type BalanceStore interface {
	// InsertBalance creates a seeded ledger.
	InsertBalance(ctx context.Context, b *Balance) error

	// GetBalance returns the ledger for (user, workspace) or
	// core.ErrBalanceNotFound.
	GetBalance(ctx context.Context, userID, workspaceID string) (*Balance, error)

	// GetBalanceByID returns the ledger or core.ErrBalanceNotFound.
	GetBalanceByID(ctx context.Context, id string) (*Balance, error)

	// UpdateBalance replaces the per-type cells.
	UpdateBalance(ctx context.Context, b *Balance) error
}

// CatalogStore exposes the workspace leave-type catalog, in definition
// order.
type CatalogStore interface {
	LeaveTypes(ctx context.Context, workspaceID string) ([]Type, error)
}

// Notifier tells the requester about a decision. Delivery (email, push)
// is an external collaborator; failures never affect the core mutation.
type Notifier interface {
	LeaveDecided(ctx context.Context, l *Leave)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) LeaveDecided(context.Context, *Leave) {}
