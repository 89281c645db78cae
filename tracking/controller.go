/*
controller.go - Timer state machine

PURPOSE:
  Orchestrates start/pause/resume/stop/manual-entry transitions over the
  Entry and Timer stores. Each operation validates its precondition
  before mutating anything.

STATE MACHINE:
  Idle    --start-->   Running
  Running --pause-->   Paused   (entry closed, still current)
  Paused  --resume-->  Running  (any past entry may be resumed)
  Running --stop-->    Idle
  Paused  --stop-->    Idle     (interval close is a no-op)

RACE HANDLING:
  The double-start race (two requests both observing IsRunning=false) is
  closed with a versioned compare-and-set on the timer. Start inserts
  the entry first and deletes it again if the swap loses.

SEE ALSO:
  - types.go: Entry/Timer invariants
  - store.go: persistence interfaces
*/
package tracking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/clockline/time-engine/core"
)

// FetchWindow is the fixed paging window for entry history.
const FetchWindow = 7 * 24 * time.Hour

// Controller drives the timer state machine for all users.
type Controller struct {
	entries EntryStore
	timers  TimerStore

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewController wires the state machine to its stores.
func NewController(entries EntryStore, timers TimerStore) *Controller {
	return &Controller{entries: entries, timers: timers, Now: time.Now}
}

// Start creates a new entry with a single open interval and moves the
// timer to Running. Fails with core.ErrTimerRunning when a timer is
// already running; no entry is persisted on failure.
func (c *Controller) Start(ctx context.Context, userID, workspaceID, projectID, title string) (*Timer, *Entry, error) {
	if projectID == "" {
		return nil, nil, core.Validationf("projectId", "please select project")
	}

	timer, err := c.timers.GetTimerByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if timer.IsRunning {
		return nil, nil, core.ErrTimerRunning
	}

	now := c.Now()
	entry := &Entry{
		ID:          newID(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Title:       title,
		StartTimes:  []time.Time{now},
		CreatedAt:   now,
	}
	if err := c.entries.InsertEntry(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("failed to create entry: %w", err)
	}

	expected := timer.Version
	timer.IsRunning = true
	timer.CurrentEntryID = entry.ID
	if err := c.timers.SwapTimer(ctx, timer, expected); err != nil {
		if errors.Is(err, core.ErrVersionConflict) {
			// Lost the start race: another request claimed the timer
			// between our read and write. Undo the entry insert.
			_ = c.entries.DeleteEntry(ctx, entry.ID)
			return nil, nil, core.ErrTimerRunning
		}
		return nil, nil, err
	}

	return timer, entry, nil
}

// Pause closes the current entry's open interval and moves the timer to
// Paused. The entry stays current and is eligible for Resume.
func (c *Controller) Pause(ctx context.Context, userID string) error {
	timer, err := c.timers.GetTimerByUser(ctx, userID)
	if err != nil {
		return err
	}
	if !timer.IsRunning {
		return core.ErrNoRunningTimer
	}

	entry, err := c.entries.GetEntry(ctx, timer.CurrentEntryID)
	if err != nil {
		return err
	}
	entry.CloseInterval(c.Now())
	if err := c.entries.UpdateEntry(ctx, entry); err != nil {
		return err
	}

	expected := timer.Version
	timer.IsRunning = false
	return c.timers.SwapTimer(ctx, timer, expected)
}

// Resume opens a new interval on the given entry and makes it current.
// Any past entry may be resumed, not only the last paused one.
func (c *Controller) Resume(ctx context.Context, userID, entryID string) (*Entry, error) {
	if entryID == "" {
		return nil, core.Validationf("entryId", "entry id is required")
	}

	timer, err := c.timers.GetTimerByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if timer.IsRunning {
		return nil, core.ErrTimerRunning
	}

	entry, err := c.entries.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	entry.StartTimes = append(entry.StartTimes, c.Now())
	if err := c.entries.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}

	expected := timer.Version
	timer.IsRunning = true
	timer.CurrentEntryID = entryID
	if err := c.timers.SwapTimer(ctx, timer, expected); err != nil {
		if errors.Is(err, core.ErrVersionConflict) {
			// Lost the resume race: another request claimed the timer
			// between our read and write. Undo the appended interval so
			// the entry doesn't dangle open with no timer owning it.
			entry.StartTimes = entry.StartTimes[:len(entry.StartTimes)-1]
			_ = c.entries.UpdateEntry(ctx, entry)
			return nil, core.ErrTimerRunning
		}
		return nil, err
	}
	return entry, nil
}

// Stop closes the current entry if it is still open, overwrites its
// title and moves the timer to Idle. Works from Running and Paused.
func (c *Controller) Stop(ctx context.Context, userID, title string) (*Timer, *Entry, error) {
	if title == "" {
		return nil, nil, core.Validationf("title", "title is required")
	}

	timer, err := c.timers.GetTimerByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if timer.CurrentEntryID == "" {
		return nil, nil, core.ErrNoCurrentEntry
	}

	entry, err := c.entries.GetEntry(ctx, timer.CurrentEntryID)
	if err != nil {
		return nil, nil, err
	}
	entry.CloseInterval(c.Now())
	entry.Title = title
	if err := c.entries.UpdateEntry(ctx, entry); err != nil {
		return nil, nil, err
	}

	expected := timer.Version
	timer.IsRunning = false
	timer.CurrentEntryID = ""
	if err := c.timers.SwapTimer(ctx, timer, expected); err != nil {
		return nil, nil, err
	}
	return timer, entry, nil
}

// ManualEntry records a fully-closed entry from explicit timestamps.
func (c *Controller) ManualEntry(ctx context.Context, userID, workspaceID, projectID, title string, start, end, createdAt time.Time) (*Entry, error) {
	if start.IsZero() || end.IsZero() {
		return nil, core.Validationf("startTime", "invalid date format in startTime or endTime")
	}
	if !end.After(start) {
		return nil, core.Validationf("endTime", "end must be after start")
	}

	if createdAt.IsZero() {
		createdAt = c.Now()
	}
	entry := &Entry{
		ID:              newID(),
		UserID:          userID,
		WorkspaceID:     workspaceID,
		ProjectID:       projectID,
		Title:           title,
		StartTimes:      []time.Time{start},
		EndTimes:        []time.Time{end},
		DurationSeconds: core.IntervalSeconds(start, end),
		CreatedAt:       createdAt,
	}
	if err := c.entries.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	return entry, nil
}

// Current returns the timer and its current entry, if any.
func (c *Controller) Current(ctx context.Context, userID string) (*Timer, *Entry, error) {
	timer, err := c.timers.GetTimerByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if timer.CurrentEntryID == "" {
		return timer, nil, nil
	}
	entry, err := c.entries.GetEntry(ctx, timer.CurrentEntryID)
	if err != nil {
		return nil, nil, err
	}
	return timer, entry, nil
}

// FetchResult is one backward page of entry history.
type FetchResult struct {
	Entries         []*Entry
	NextSince       time.Time
	RefetchRequired bool
}

// FetchEntries returns the user's entries created in the fixed 7-day
// window ending just before since, newest first. NextSince is the
// cursor for the next (older) page; RefetchRequired signals the caller
// that the window was non-empty and older pages may exist.
func (c *Controller) FetchEntries(ctx context.Context, userID, workspaceID string, since time.Time) (*FetchResult, error) {
	if since.IsZero() {
		return nil, core.Validationf("since", "cursor timestamp is required")
	}
	from := since.Add(-FetchWindow)
	entries, err := c.entries.ListEntries(ctx, userID, workspaceID, from, since)
	if err != nil {
		return nil, err
	}
	return &FetchResult{
		Entries:         entries,
		NextSince:       from,
		RefetchRequired: len(entries) > 0,
	}, nil
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return hex.EncodeToString(b[:])
}
