/*
approval.go - Leave approval and the balance deduction cascade

PURPOSE:
  Applies an approver's decision to a pending leave. Approval consumes
  the user's balances in a fixed priority order; rejection only records
  the status and reason.

DEDUCTION CASCADE (on approval, days = leave.NumberOfDays):
  1. Overtime first: deduct min(overtime.Value, days) from the
     "overtime" cell, mirror it into Consumed, reduce days.
  2. Own type next: same deduction against the leave's own type.
  3. Remainder is unpaid: the FIRST unpaid type in the workspace catalog
     absorbs what's left into Consumed only. Unpaid leave has no quota
     to draw down, only a usage counter.

  The cascade runs only when the leave's own type exists in the ledger;
  otherwise the balance is left untouched. When a workspace defines more
  than one unpaid type, only the first ever absorbs overflow.

CONSISTENCY:
  Balance and leave are persisted as two separate writes with no
  wrapping transaction; a failure between them leaves the ledger updated
  and the leave still pending. Callers retry by re-issuing the decision
  (a same-status transition is a no-op).

SEE ALSO:
  - types.go: Balance/TypeBalance shapes
  - accounting/report.go: where the overtime balance is accrued
*/
package leave

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/clockline/time-engine/core"
)

// ApprovalEngine applies status decisions to leave requests.
type ApprovalEngine struct {
	leaves   Store
	balances BalanceStore
	catalog  CatalogStore
	notifier Notifier
}

// NewApprovalEngine wires the engine. A nil notifier disables
// notifications.
func NewApprovalEngine(leaves Store, balances BalanceStore, catalog CatalogStore, notifier Notifier) *ApprovalEngine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ApprovalEngine{leaves: leaves, balances: balances, catalog: catalog, notifier: notifier}
}

// Decision is the outcome of SetStatus.
type Decision struct {
	Leave   *Leave
	Balance *Balance
	// NoOp is true when the requested status matched the current one
	// and nothing was mutated.
	NoOp bool
}

// SetStatus transitions a leave to approved or rejected. A transition
// to the current status is a no-op. Approval runs the deduction cascade
// and persists the balance; rejection persists only status and reason.
func (e *ApprovalEngine) SetStatus(ctx context.Context, leaveID string, status Status, rejectionReason string) (*Decision, error) {
	if status != StatusApproved && status != StatusRejected {
		return nil, core.Validationf("status", "must be approved or rejected")
	}

	l, err := e.leaves.GetLeave(ctx, leaveID)
	if err != nil {
		return nil, err
	}
	if l.Status == status {
		return &Decision{Leave: l, NoOp: true}, nil
	}

	balance, err := e.balances.GetBalanceByID(ctx, l.BalanceID)
	if err != nil {
		return nil, err
	}

	if status == StatusApproved {
		catalog, err := e.catalog.LeaveTypes(ctx, l.WorkspaceID)
		if err != nil {
			return nil, err
		}
		ApplyDeduction(balance, catalog, l.Type, l.NumberOfDays)
		if err := e.balances.UpdateBalance(ctx, balance); err != nil {
			return nil, fmt.Errorf("failed to persist balance: %w", err)
		}
	}

	l.Status = status
	if rejectionReason != "" {
		l.RejectionReason = rejectionReason
	}
	if err := e.leaves.UpdateLeave(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to persist leave: %w", err)
	}

	e.notifier.LeaveDecided(ctx, l)

	return &Decision{Leave: l, Balance: balance}, nil
}

// ApplyDeduction mutates the balance in place per the cascade. It is a
// pure in-memory operation; callers persist the result.
func ApplyDeduction(b *Balance, catalog []Type, leaveType string, numberOfDays float64) {
	own := b.Get(leaveType)
	if own == nil {
		// Unknown type for this ledger: leave everything untouched.
		return
	}

	days := decimal.NewFromFloat(numberOfDays)

	if overtime := b.Get(OvertimeType); overtime != nil && overtime.Value.IsPositive() {
		d := decimal.Min(overtime.Value, days)
		overtime.Value = overtime.Value.Sub(d)
		overtime.Consumed = overtime.Consumed.Add(d)
		days = days.Sub(d)
	}

	if days.IsPositive() && own.Value.IsPositive() {
		d := decimal.Min(own.Value, days)
		own.Value = own.Value.Sub(d)
		own.Consumed = own.Consumed.Add(d)
		days = days.Sub(d)
	}

	if days.IsPositive() {
		unpaid := FirstUnpaid(catalog)
		if unpaid == nil {
			return
		}
		cell := b.Get(unpaid.Name)
		if cell == nil {
			cell = &TypeBalance{Value: decimal.Zero, Consumed: decimal.Zero}
			b.Balances[unpaid.Name] = cell
		}
		cell.Consumed = cell.Consumed.Add(days)
	}
}
