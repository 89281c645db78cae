/*
request.go - Leave request lifecycle

Requests are created pending, may be edited or deleted by their owner
while still pending, and are decided exactly once by an approver (see
approval.go). A new request conflicts with any pending or approved
request of the same user whose date range intersects it.
*/
package leave

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/clockline/time-engine/core"
)

// Service manages the request lifecycle around the approval engine.
type Service struct {
	leaves   Store
	balances BalanceStore

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewService wires the lifecycle service.
func NewService(leaves Store, balances BalanceStore) *Service {
	return &Service{leaves: leaves, balances: balances, Now: time.Now}
}

// CreateRequest holds the requester's input.
type CreateRequest struct {
	UserID       string
	WorkspaceID  string
	Type         string
	Title        string
	Description  string
	StartDate    time.Time
	EndDate      time.Time
	NumberOfDays float64
	DailyDetails []DayDetail
}

// Create validates and persists a pending request. Fails with
// core.ErrLeaveOverlap when the range collides with an existing pending
// or approved request of the same user.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Leave, error) {
	switch {
	case req.Title == "":
		return nil, core.Validationf("title", "title is required")
	case req.Type == "":
		return nil, core.Validationf("type", "leave type is required")
	case req.UserID == "":
		return nil, core.Validationf("userId", "user id is required")
	case req.StartDate.IsZero() || req.EndDate.IsZero():
		return nil, core.Validationf("startDate", "start and end date are required")
	case req.EndDate.Before(req.StartDate):
		return nil, core.Validationf("endDate", "end date before start date")
	case req.NumberOfDays <= 0:
		return nil, core.Validationf("numberOfDays", "must be positive")
	}

	overlaps, err := s.leaves.HasOverlapping(ctx, req.UserID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if overlaps {
		return nil, core.ErrLeaveOverlap
	}

	balance, err := s.balances.GetBalance(ctx, req.UserID, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	l := &Leave{
		ID:           newID(),
		UserID:       req.UserID,
		WorkspaceID:  req.WorkspaceID,
		Type:         req.Type,
		Status:       StatusPending,
		Title:        req.Title,
		Description:  req.Description,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		NumberOfDays: req.NumberOfDays,
		DailyDetails: req.DailyDetails,
		BalanceID:    balance.ID,
		CreatedAt:    s.Now(),
	}
	if err := s.leaves.InsertLeave(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateRequest holds the owner's edits to a pending request.
type UpdateRequest struct {
	LeaveID      string
	UserID       string
	Type         string
	Title        string
	StartDate    time.Time
	EndDate      time.Time
	NumberOfDays float64
	DailyDetails []DayDetail
}

// Update edits a pending request. Only the owner may edit, and only
// while the request is still pending.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Leave, error) {
	l, err := s.leaves.GetLeave(ctx, req.LeaveID)
	if err != nil {
		return nil, err
	}
	if l.UserID != req.UserID {
		return nil, core.Validationf("userId", "not the owner of this leave request")
	}
	if l.Status != StatusPending {
		return nil, core.ErrLeaveNotPending
	}

	l.Title = req.Title
	l.Type = req.Type
	l.StartDate = req.StartDate
	l.EndDate = req.EndDate
	l.DailyDetails = req.DailyDetails
	l.NumberOfDays = req.NumberOfDays
	if err := s.leaves.UpdateLeave(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Delete removes a request. Decided requests cannot be deleted.
func (s *Service) Delete(ctx context.Context, userID, leaveID string) error {
	l, err := s.leaves.GetLeave(ctx, leaveID)
	if err != nil {
		return err
	}
	if l.UserID != userID {
		return core.Validationf("userId", "not the owner of this leave request")
	}
	if l.Status != StatusPending {
		return core.ErrLeaveNotPending
	}
	return s.leaves.DeleteLeave(ctx, leaveID)
}

// ListByUser returns the user's requests, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Leave, error) {
	return s.leaves.ListLeavesByUser(ctx, userID)
}

// BalanceFor returns the user's ledger for a workspace.
func (s *Service) BalanceFor(ctx context.Context, userID, workspaceID string) (*Balance, error) {
	return s.balances.GetBalance(ctx, userID, workspaceID)
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
