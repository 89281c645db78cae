/*
Package leave implements the leave-request lifecycle and the per-user
balance ledger it draws from.

PURPOSE:
  A workspace defines an ordered catalog of leave types (casual, sick,
  overtime, unpaid...). Every user carries one LeaveBalance per
  workspace: a per-type record of remaining quota (Value) and usage
  (Consumed). Approving a leave consumes balances in a fixed priority
  order; see approval.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - Type: a catalog entry with a paid/unpaid flag
  - TypeBalance: remaining quota + usage counter for one type
  - Balance: the per-user, per-workspace ledger (map keyed by type name)
  - Leave: a request with per-day detail and a pending/approved/rejected
    lifecycle

DESIGN NOTE:
  Balances are keyed by type name rather than held in a positional list,
  so catalog changes can't silently shift which entry a deduction hits.

SEE ALSO:
  - approval.go: deduction cascade
  - request.go: request lifecycle (create, update, delete)
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// OvertimeType is the reserved balance type fed by monthly overtime
// accrual and drained first by the approval cascade.
const OvertimeType = "overtime"

// Type is a workspace catalog entry. Catalog order matters: overflow
// days land on the FIRST unpaid type.
type Type struct {
	Name string
	Paid bool
}

// FirstUnpaid returns the first catalog type with Paid=false, or nil.
func FirstUnpaid(catalog []Type) *Type {
	for i := range catalog {
		if !catalog[i].Paid {
			return &catalog[i]
		}
	}
	return nil
}

// TypeBalance is the ledger cell for one leave type. Value is the
// remaining quota; Consumed counts usage. Unpaid types keep Value at
// zero and only ever grow Consumed.
type TypeBalance struct {
	Value    decimal.Decimal `json:"value"`
	Consumed decimal.Decimal `json:"consumed"`
}

// Balance is the per-user, per-workspace leave ledger.
type Balance struct {
	ID          string
	UserID      string
	WorkspaceID string
	Balances    map[string]*TypeBalance
}

// NewBalance seeds a ledger with Value=0 for every catalog type, the
// shape given to a user at signup/invite time.
func NewBalance(id, userID, workspaceID string, catalog []Type) *Balance {
	b := &Balance{
		ID:          id,
		UserID:      userID,
		WorkspaceID: workspaceID,
		Balances:    make(map[string]*TypeBalance, len(catalog)),
	}
	for _, t := range catalog {
		b.Balances[t.Name] = &TypeBalance{Value: decimal.Zero, Consumed: decimal.Zero}
	}
	return b
}

// Get returns the cell for a type, or nil when the type is unknown to
// this ledger.
func (b *Balance) Get(typeName string) *TypeBalance {
	return b.Balances[typeName]
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// Status is the request lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// DayDuration is the portion of a day a leave covers.
type DayDuration string

const (
	FullDay DayDuration = "fullday"
	HalfDay DayDuration = "halfday"
)

// Days is the day-count weight of the duration (1.0 or 0.5).
func (d DayDuration) Days() float64 {
	if d == HalfDay {
		return 0.5
	}
	return 1
}

// DayDetail is one covered day of a leave request.
type DayDetail struct {
	Day      time.Time   `json:"day"`
	Duration DayDuration `json:"duration"`
}

// Leave is a request to consume leave balance over a date range.
type Leave struct {
	ID              string
	UserID          string
	WorkspaceID     string
	Type            string
	Status          Status
	Title           string
	Description     string
	StartDate       time.Time
	EndDate         time.Time
	NumberOfDays    float64
	DailyDetails    []DayDetail
	RejectionReason string
	BalanceID       string // weak reference to the Balance it will affect
	CreatedAt       time.Time
}
