/*
Package tracking implements the per-user timer state machine and the
time entries it produces.

PURPOSE:
  A user tracks work through a single timer. The timer points at one
  "current" entry at most; an entry accumulates worked time as a
  sequence of start/end interval pairs, so pausing and resuming the same
  piece of work keeps everything in one record.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: interval pairs plus an accumulated duration in whole seconds
  - Timer: per-user aggregate pointing at the current entry
  - Timer states: Idle, Running, Paused

INVARIANTS:
  1. len(EndTimes) is len(StartTimes) or len(StartTimes)-1
  2. An entry is open iff it has one more start than ends
  3. DurationSeconds changes only when an interval closes
  4. Timer.IsRunning implies CurrentEntryID is set and that entry is open
  5. CurrentEntryID set with IsRunning false is the Paused state

SEE ALSO:
  - controller.go: state machine transitions
  - store.go: persistence interfaces
*/
package tracking

import (
	"time"

	"github.com/clockline/time-engine/core"
)

// Entry is a record of worked time. Each pause/resume cycle appends an
// interval pair; DurationSeconds is the sum of floor(end-start) seconds
// over all closed pairs.
type Entry struct {
	ID              string
	UserID          string
	WorkspaceID     string
	ProjectID       string
	Title           string
	StartTimes      []time.Time
	EndTimes        []time.Time
	DurationSeconds int64
	CreatedAt       time.Time
}

// Open reports whether the entry has an unclosed interval.
func (e *Entry) Open() bool {
	return len(e.StartTimes) > len(e.EndTimes)
}

// CloseInterval appends end to the end sequence and accumulates the
// elapsed whole seconds of the interval it closes. No-op when the entry
// is already closed.
func (e *Entry) CloseInterval(end time.Time) {
	if !e.Open() {
		return
	}
	start := e.StartTimes[len(e.StartTimes)-1]
	e.EndTimes = append(e.EndTimes, end)
	e.DurationSeconds += core.IntervalSeconds(start, end)
}

// Timer is the per-user pointer to the active or paused entry.
//
// Version is an optimistic-lock counter: every persisted transition
// bumps it, and stores reject writes whose expected version is stale.
// Two concurrent starts can both read IsRunning=false, but only one
// compare-and-set wins.
type Timer struct {
	ID             string
	UserID         string
	IsRunning      bool
	CurrentEntryID string // empty = no current entry
	Version        int64
}

// State is the derived timer state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// State derives the machine state from the aggregate fields.
func (t *Timer) State() State {
	switch {
	case t.IsRunning:
		return StateRunning
	case t.CurrentEntryID != "":
		return StatePaused
	default:
		return StateIdle
	}
}
