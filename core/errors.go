/*
Package core provides shared plumbing for the time and leave engine.

PURPOSE:
  Domain packages (tracking, leave, accounting) share a common error
  taxonomy and a handful of calendar/duration helpers. They live here so
  the HTTP layer can map any domain error to a transport status without
  knowing which engine produced it.

ERROR TAXONOMY:
  Validation - malformed input, invalid date ranges. Rejected before any
               mutation.
  Conflict   - timer already running, overlapping leave request.
               Rejected before any mutation.
  NotFound   - missing user/entry/timer/leave/balance/workspace.
  Internal   - store failure or unexpected state. Never retried; no
               partial-mutation rollback is attempted beyond explicit
               compensating writes.

USAGE:
  if err := ctrl.Start(ctx, userID, projectID, title); core.IsConflict(err) {
      // 400 at the transport layer
  }

SEE ALSO:
  - api/handlers.go: error kind to HTTP status mapping
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTimerRunning is returned when starting or resuming while a timer
	// is already running for the user.
	ErrTimerRunning = errors.New("timer is already running")

	// ErrNoRunningTimer is returned by pause when the user has no running timer.
	ErrNoRunningTimer = errors.New("no running timer found")

	// ErrNoCurrentEntry is returned by stop when the timer has no current entry.
	ErrNoCurrentEntry = errors.New("no current entry")

	// ErrEntryNotFound is returned when a referenced entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrTimerNotFound is returned when the user has no timer aggregate.
	ErrTimerNotFound = errors.New("timer not found")

	// ErrLeaveNotFound is returned when a referenced leave doesn't exist.
	ErrLeaveNotFound = errors.New("leave not found")

	// ErrBalanceNotFound is returned when a user has no leave balance in
	// the workspace.
	ErrBalanceNotFound = errors.New("leave balance not found")

	// ErrWorkspaceNotFound is returned when a referenced workspace doesn't exist.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrRuleNotFound is returned when a workspace has no active rule.
	ErrRuleNotFound = errors.New("no active workspace rule")

	// ErrLeaveOverlap is returned when a new leave request overlaps an
	// existing pending or approved request for the same user.
	ErrLeaveOverlap = errors.New("leave already applied for the same date")

	// ErrLeaveNotPending is returned when mutating or deleting a leave
	// that has already been decided.
	ErrLeaveNotPending = errors.New("leave request is no longer pending")

	// ErrVersionConflict is returned when a compare-and-set on the timer
	// aggregate loses a race. Callers surface it as a conflict.
	ErrVersionConflict = errors.New("concurrent timer modification")
)

// =============================================================================
// VALIDATION ERRORS - Carry the offending field
// =============================================================================

// ValidationError reports malformed or missing input. It is always
// raised before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// CLASSIFIERS
// =============================================================================

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a precondition conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTimerRunning) ||
		errors.Is(err, ErrLeaveOverlap) ||
		errors.Is(err, ErrLeaveNotPending) ||
		errors.Is(err, ErrVersionConflict)
}

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrTimerNotFound) ||
		errors.Is(err, ErrLeaveNotFound) ||
		errors.Is(err, ErrBalanceNotFound) ||
		errors.Is(err, ErrWorkspaceNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrNoRunningTimer) ||
		errors.Is(err, ErrNoCurrentEntry)
}
