/*
handlers.go - HTTP API handlers for the time engine

PURPOSE:
  Exposes the tracking, leave and accounting engines via REST. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic.

ENDPOINTS:
  Timer:
    POST   /api/timer/start            Start a running entry
    POST   /api/timer/pause            Pause the running timer
    POST   /api/timer/resume           Reopen a past entry
    POST   /api/timer/stop             Finish the current entry
    GET    /api/timer?userId=          Current timer + entry

  Entries:
    POST   /api/entries                Record a manual entry
    GET    /api/entries?userId=&workspaceId=&since=  7-day history page

  Leaves:
    POST   /api/leaves                 Submit a pending request
    GET    /api/leaves/{userID}        List a user's requests
    PUT    /api/leaves/{id}            Edit a pending request
    DELETE /api/leaves/{id}?userId=    Withdraw a pending request
    PUT    /api/leaves/status          Approve or reject
    GET    /api/leaves/balance/{userID}/{workspaceID}  Ledger

  Workspace admin:
    POST   /api/workspaces/{id}/reports/monthly       Generate
    POST   /api/workspaces/{id}/reports/monthly/save  Persist + accrue
    POST+GET /api/workspaces/{id}/holidays
    POST+GET /api/workspaces/{id}/rules
    POST   /api/workspaces/{id}/members               Onboard a member

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (controller, approval engine, accounting engine)
  4. Serialize response
  5. Map errors onto the status taxonomy (see dto.go writeError)

SECURITY NOTE:
  No authentication middleware. The user id in the payload or path is
  trusted as the authenticated identity; an auth layer in front of this
  service owns that problem.

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clockline/time-engine/accounting"
	"github.com/clockline/time-engine/core"
	"github.com/clockline/time-engine/leave"
	"github.com/clockline/time-engine/store/sqlite"
	"github.com/clockline/time-engine/tracking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Timers    *tracking.Controller
	Leaves    *leave.Service
	Approvals *leave.ApprovalEngine
	Reports   *accounting.Engine
}

// NewHandler wires the engines on top of the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:     store,
		Timers:    tracking.NewController(store, store),
		Leaves:    leave.NewService(store, store),
		Approvals: leave.NewApprovalEngine(store, store, store, nil),
		Reports:   accounting.NewEngine(store, store, store, store, store, store, store, store),
	}
}

// ensureTimer lazily creates the user's timer aggregate on first use.
func (h *Handler) ensureTimer(ctx context.Context, userID string) error {
	_, err := h.Store.GetTimerByUser(ctx, userID)
	if errors.Is(err, core.ErrTimerNotFound) {
		return h.Store.InsertTimer(ctx, &tracking.Timer{ID: newID(), UserID: userID})
	}
	return err
}

// =============================================================================
// TIMER HANDLERS
// =============================================================================

// StartTimer starts a new running entry for the user.
func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	var req StartTimerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == "" {
		writeError(w, core.Validationf("userId", "user id is required"))
		return
	}
	if err := h.ensureTimer(r.Context(), req.UserID); err != nil {
		writeError(w, err)
		return
	}

	timer, entry, err := h.Timers.Start(r.Context(), req.UserID, req.WorkspaceID, req.ProjectID, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"timer": toTimerDTO(timer),
		"entry": toEntryDTO(entry),
	})
}

// PauseTimer pauses the user's running timer.
func (h *Handler) PauseTimer(w http.ResponseWriter, r *http.Request) {
	var req PauseTimerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Timers.Pause(r.Context(), req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// ResumeTimer reopens an interval on a past entry.
func (h *Handler) ResumeTimer(w http.ResponseWriter, r *http.Request) {
	var req ResumeTimerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.Timers.Resume(r.Context(), req.UserID, req.EntryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// StopTimer finishes the current entry.
func (h *Handler) StopTimer(w http.ResponseWriter, r *http.Request) {
	var req StopTimerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	timer, entry, err := h.Timers.Stop(r.Context(), req.UserID, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"timer": toTimerDTO(timer),
		"entry": toEntryDTO(entry),
	})
}

// CurrentTimer returns the user's timer and its current entry, creating
// the timer on first contact.
func (h *Handler) CurrentTimer(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, core.Validationf("userId", "user id is required"))
		return
	}
	if err := h.ensureTimer(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	timer, entry, err := h.Timers.Current(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"timer": toTimerDTO(timer)}
	if entry != nil {
		resp["entry"] = toEntryDTO(entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// CreateManualEntry records a fully-closed entry from explicit times.
func (h *Handler) CreateManualEntry(w http.ResponseWriter, r *http.Request) {
	var req ManualEntryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.Timers.ManualEntry(r.Context(), req.UserID, req.WorkspaceID,
		req.ProjectID, req.Title, req.StartTime, req.EndTime, req.CreatedAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// FetchEntries returns one 7-day backward page of entry history.
func (h *Handler) FetchEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	workspaceID := q.Get("workspaceId")

	var since time.Time
	if raw := q.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, core.Validationf("since", "invalid RFC3339 timestamp"))
			return
		}
		since = parsed
	} else {
		since = time.Now()
	}

	result, err := h.Timers.FetchEntries(r.Context(), userID, workspaceID, since)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]EntryDTO, len(result.Entries))
	for i, e := range result.Entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, FetchEntriesResponse{
		Entries:         dtos,
		NextSince:       result.NextSince,
		RefetchRequired: result.RefetchRequired,
	})
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// CreateLeave submits a new pending leave request.
func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	l, err := h.Leaves.Create(r.Context(), leave.CreateRequest{
		UserID:       req.UserID,
		WorkspaceID:  req.WorkspaceID,
		Type:         req.Type,
		Title:        req.Title,
		Description:  req.Description,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		NumberOfDays: req.NumberOfDays,
		DailyDetails: toDayDetails(req.DailyDetails),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveDTO(l))
}

// ListLeaves returns a user's requests, newest first.
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	leaves, err := h.Leaves.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]LeaveDTO, len(leaves))
	for i, l := range leaves {
		dtos[i] = toLeaveDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateLeave edits a pending request (owner only).
func (h *Handler) UpdateLeave(w http.ResponseWriter, r *http.Request) {
	var req UpdateLeaveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	l, err := h.Leaves.Update(r.Context(), leave.UpdateRequest{
		LeaveID:      chi.URLParam(r, "id"),
		UserID:       req.UserID,
		Type:         req.Type,
		Title:        req.Title,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		NumberOfDays: req.NumberOfDays,
		DailyDetails: toDayDetails(req.DailyDetails),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(l))
}

// DeleteLeave withdraws a pending request (owner only).
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if err := h.Leaves.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SetLeaveStatus approves or rejects a request and runs the balance
// deduction cascade on approval.
func (h *Handler) SetLeaveStatus(w http.ResponseWriter, r *http.Request) {
	var req SetLeaveStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	decision, err := h.Approvals.SetStatus(r.Context(), req.LeaveID,
		leave.Status(req.Status), req.RejectionReason)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"leave": toLeaveDTO(decision.Leave),
		"noOp":  decision.NoOp,
	}
	if decision.Balance != nil {
		resp["balance"] = toBalanceDTO(decision.Balance)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBalance returns a user's leave ledger for a workspace.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Leaves.BalanceFor(r.Context(),
		chi.URLParam(r, "userID"), chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GenerateMonthlyReport computes the workspace report for a month
// without persisting it.
func (h *Handler) GenerateMonthlyReport(w http.ResponseWriter, r *http.Request) {
	var req MonthlyReportRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	year, month, err := validateMonth(req.Year, req.Month)
	if err != nil {
		writeError(w, err)
		return
	}

	start, end := monthBounds(year, month)
	payload, err := h.Reports.Generate(r.Context(), chi.URLParam(r, "workspaceID"),
		year, month, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// SaveMonthlyReport upserts a generated payload. Overtime accrual into
// the users' balances happens only on first creation.
func (h *Handler) SaveMonthlyReport(w http.ResponseWriter, r *http.Request) {
	var req SaveReportRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	year, month, err := validateMonth(req.Year, req.Month)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.Reports.Save(r.Context(), chi.URLParam(r, "workspaceID"),
		month, year, &req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              report.ID,
		"month":           int(report.Month),
		"year":            report.Year,
		"overtimeAccrued": report.OvertimeAccrued,
	})
}

func validateMonth(year, month int) (int, time.Month, error) {
	if year < 1970 {
		return 0, 0, core.Validationf("year", "invalid year")
	}
	if month < 1 || month > 12 {
		return 0, 0, core.Validationf("month", "must be 1-12")
	}
	return year, time.Month(month), nil
}

// monthBounds returns the first and last instant of the month in UTC.
func monthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// =============================================================================
// WORKSPACE ADMIN HANDLERS
// =============================================================================

// CreateHoliday adds a holiday to the workspace calendar.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Title == "" {
		writeError(w, core.Validationf("title", "title is required"))
		return
	}
	if req.Date.IsZero() {
		writeError(w, core.Validationf("date", "date is required"))
		return
	}
	typ := accounting.HolidayType(req.Type)
	if typ != accounting.HolidayGazetted && typ != accounting.HolidayRestricted {
		writeError(w, core.Validationf("type", "must be Gazetted or Restricted"))
		return
	}

	holiday := accounting.Holiday{
		ID:          newID(),
		WorkspaceID: chi.URLParam(r, "workspaceID"),
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Type:        typ,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// ListHolidays returns the workspace's holidays for a year
// (?year=YYYY, defaults to the current year).
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := time.Parse("2006", raw)
		if err != nil {
			writeError(w, core.Validationf("year", "invalid year"))
			return
		}
		year = parsed.Year()
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	holidays, err := h.Store.HolidaysInRange(r.Context(), chi.URLParam(r, "workspaceID"), from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]HolidayDTO, len(holidays))
	for i, holiday := range holidays {
		dtos[i] = toHolidayDTO(holiday)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func toHolidayDTO(h accounting.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:          h.ID,
		WorkspaceID: h.WorkspaceID,
		Title:       h.Title,
		Description: h.Description,
		Date:        h.Date,
		Type:        string(h.Type),
	}
}

// CreateRule defines a workspace calendar rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkingHours <= 0 || req.WorkingHours > 24 {
		writeError(w, core.Validationf("workingHours", "must be between 1 and 24"))
		return
	}
	if len(req.WeekDays) == 0 {
		writeError(w, core.Validationf("weekDays", "at least one working weekday is required"))
		return
	}

	rule := accounting.Rule{
		ID:           newID(),
		WorkspaceID:  chi.URLParam(r, "workspaceID"),
		Title:        req.Title,
		WorkingHours: req.WorkingHours,
		WorkingDays:  req.WorkingDays,
		WeekDays:     req.WeekDays,
		IsActive:     req.IsActive,
	}
	if err := h.Store.SaveRule(r.Context(), rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(rule))
}

// GetActiveRule returns the workspace's active rule.
func (h *Handler) GetActiveRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Store.ActiveRule(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

func toRuleDTO(r accounting.Rule) RuleDTO {
	return RuleDTO{
		ID:           r.ID,
		WorkspaceID:  r.WorkspaceID,
		Title:        r.Title,
		WorkingHours: r.WorkingHours,
		WorkingDays:  r.WorkingDays,
		WeekDays:     r.WeekDays,
		IsActive:     r.IsActive,
	}
}

// OnboardMemberRequest adds a user to a workspace.
type OnboardMemberRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// OnboardMember registers a member, seeds their leave ledger from the
// workspace catalog and creates their timer aggregate.
func (h *Handler) OnboardMember(w http.ResponseWriter, r *http.Request) {
	var req OnboardMemberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == "" || req.Name == "" {
		writeError(w, core.Validationf("userId", "user id and name are required"))
		return
	}
	workspaceID := chi.URLParam(r, "workspaceID")
	ctx := r.Context()

	if err := h.Store.SaveMember(ctx, workspaceID, accounting.Member{ID: req.UserID, Name: req.Name}); err != nil {
		writeError(w, err)
		return
	}

	catalog, err := h.Store.LeaveTypes(ctx, workspaceID)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.Store.GetBalance(ctx, req.UserID, workspaceID); errors.Is(err, core.ErrBalanceNotFound) {
		balance := leave.NewBalance(newID(), req.UserID, workspaceID, catalog)
		if err := h.Store.InsertBalance(ctx, balance); err != nil {
			writeError(w, err)
			return
		}
	} else if err != nil {
		writeError(w, err)
		return
	}

	if err := h.ensureTimer(ctx, req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "onboarded"})
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
