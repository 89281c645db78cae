/*
dto.go - Request/response data structures

PURPOSE:
  JSON shapes for the REST API, kept separate from domain types so the
  wire format can evolve without touching the engines. Timestamps are
  RFC3339; durations are {hours, minutes, seconds} objects.

SEE ALSO:
  - handlers.go: where these are populated
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clockline/time-engine/accounting"
	"github.com/clockline/time-engine/core"
	"github.com/clockline/time-engine/leave"
	"github.com/clockline/time-engine/tracking"
)

// =============================================================================
// TIMER / ENTRY DTOs
// =============================================================================

// StartTimerRequest starts a new running entry.
type StartTimerRequest struct {
	UserID      string `json:"userId"`
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
	Title       string `json:"title"`
}

// PauseTimerRequest pauses the user's running timer.
type PauseTimerRequest struct {
	UserID string `json:"userId"`
}

// ResumeTimerRequest reopens an interval on a past entry.
type ResumeTimerRequest struct {
	UserID  string `json:"userId"`
	EntryID string `json:"entryId"`
}

// StopTimerRequest finishes the current entry.
type StopTimerRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
}

// ManualEntryRequest records a closed entry from explicit timestamps.
type ManualEntryRequest struct {
	UserID      string    `json:"userId"`
	WorkspaceID string    `json:"workspaceId"`
	ProjectID   string    `json:"projectId"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// TimerDTO is the wire shape of a timer.
type TimerDTO struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	IsRunning      bool   `json:"isRunning"`
	CurrentEntryID string `json:"currentEntryId,omitempty"`
	State          string `json:"state"`
}

// EntryDTO is the wire shape of a time entry.
type EntryDTO struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	WorkspaceID     string    `json:"workspaceId"`
	ProjectID       string    `json:"projectId"`
	Title           string    `json:"title"`
	StartTimes      []string  `json:"startTimes"`
	EndTimes        []string  `json:"endTimes"`
	DurationSeconds int64     `json:"durationSeconds"`
	Duration        core.HMS  `json:"duration"`
	CreatedAt       time.Time `json:"createdAt"`
}

// FetchEntriesResponse is one backward page of entry history.
type FetchEntriesResponse struct {
	Entries         []EntryDTO `json:"entries"`
	NextSince       time.Time  `json:"nextSince"`
	RefetchRequired bool       `json:"refetchRequired"`
}

func toTimerDTO(t *tracking.Timer) TimerDTO {
	return TimerDTO{
		ID:             t.ID,
		UserID:         t.UserID,
		IsRunning:      t.IsRunning,
		CurrentEntryID: t.CurrentEntryID,
		State:          string(t.State()),
	}
}

func toEntryDTO(e *tracking.Entry) EntryDTO {
	return EntryDTO{
		ID:              e.ID,
		UserID:          e.UserID,
		WorkspaceID:     e.WorkspaceID,
		ProjectID:       e.ProjectID,
		Title:           e.Title,
		StartTimes:      formatTimes(e.StartTimes),
		EndTimes:        formatTimes(e.EndTimes),
		DurationSeconds: e.DurationSeconds,
		Duration:        core.FormatDuration(e.DurationSeconds),
		CreatedAt:       e.CreatedAt,
	}
}

func formatTimes(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// =============================================================================
// LEAVE DTOs
// =============================================================================

// CreateLeaveRequest submits a new pending leave request.
type CreateLeaveRequest struct {
	UserID       string           `json:"userId"`
	WorkspaceID  string           `json:"workspaceId"`
	Type         string           `json:"type"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	StartDate    time.Time        `json:"startDate"`
	EndDate      time.Time        `json:"endDate"`
	NumberOfDays float64          `json:"numberOfDays"`
	DailyDetails []DayDetailDTO   `json:"dailyDetails"`
}

// UpdateLeaveRequest edits a pending request.
type UpdateLeaveRequest struct {
	UserID       string         `json:"userId"`
	Type         string         `json:"type"`
	Title        string         `json:"title"`
	StartDate    time.Time      `json:"startDate"`
	EndDate      time.Time      `json:"endDate"`
	NumberOfDays float64        `json:"numberOfDays"`
	DailyDetails []DayDetailDTO `json:"dailyDetails"`
}

// SetLeaveStatusRequest applies an approver's decision.
type SetLeaveStatusRequest struct {
	LeaveID         string `json:"leaveId"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

// DayDetailDTO is one covered day of a leave.
type DayDetailDTO struct {
	Day      time.Time `json:"day"`
	Duration string    `json:"duration"`
}

// LeaveDTO is the wire shape of a leave request.
type LeaveDTO struct {
	ID              string         `json:"id"`
	UserID          string         `json:"userId"`
	WorkspaceID     string         `json:"workspaceId"`
	Type            string         `json:"type"`
	Status          string         `json:"status"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	StartDate       time.Time      `json:"startDate"`
	EndDate         time.Time      `json:"endDate"`
	NumberOfDays    float64        `json:"numberOfDays"`
	DailyDetails    []DayDetailDTO `json:"dailyDetails"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// BalanceDTO is the wire shape of a user's leave ledger.
type BalanceDTO struct {
	ID          string                      `json:"id"`
	UserID      string                      `json:"userId"`
	WorkspaceID string                      `json:"workspaceId"`
	Balances    map[string]TypeBalanceDTO   `json:"leaveBalance"`
}

// TypeBalanceDTO is one ledger cell.
type TypeBalanceDTO struct {
	Value    decimal.Decimal `json:"value"`
	Consumed decimal.Decimal `json:"consumed"`
}

func toLeaveDTO(l *leave.Leave) LeaveDTO {
	details := make([]DayDetailDTO, len(l.DailyDetails))
	for i, d := range l.DailyDetails {
		details[i] = DayDetailDTO{Day: d.Day, Duration: string(d.Duration)}
	}
	return LeaveDTO{
		ID:              l.ID,
		UserID:          l.UserID,
		WorkspaceID:     l.WorkspaceID,
		Type:            l.Type,
		Status:          string(l.Status),
		Title:           l.Title,
		Description:     l.Description,
		StartDate:       l.StartDate,
		EndDate:         l.EndDate,
		NumberOfDays:    l.NumberOfDays,
		DailyDetails:    details,
		RejectionReason: l.RejectionReason,
		CreatedAt:       l.CreatedAt,
	}
}

func toBalanceDTO(b *leave.Balance) BalanceDTO {
	cells := make(map[string]TypeBalanceDTO, len(b.Balances))
	for name, cell := range b.Balances {
		cells[name] = TypeBalanceDTO{Value: cell.Value, Consumed: cell.Consumed}
	}
	return BalanceDTO{
		ID:          b.ID,
		UserID:      b.UserID,
		WorkspaceID: b.WorkspaceID,
		Balances:    cells,
	}
}

func toDayDetails(dtos []DayDetailDTO) []leave.DayDetail {
	details := make([]leave.DayDetail, len(dtos))
	for i, d := range dtos {
		details[i] = leave.DayDetail{Day: d.Day, Duration: leave.DayDuration(d.Duration)}
	}
	return details
}

// =============================================================================
// REPORT / ADMIN DTOs
// =============================================================================

// MonthlyReportRequest selects the month to generate or save.
type MonthlyReportRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12
}

// SaveReportRequest persists a previously generated payload.
type SaveReportRequest struct {
	Year    int                      `json:"year"`
	Month   int                      `json:"month"`
	Payload accounting.ReportPayload `json:"payload"`
}

// CreateHolidayRequest adds a holiday to the workspace calendar.
type CreateHolidayRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"` // Gazetted or Restricted
}

// HolidayDTO is the wire shape of a holiday.
type HolidayDTO struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
}

// CreateRuleRequest defines a workspace calendar rule. Creating an
// active rule deactivates the workspace's other rules.
type CreateRuleRequest struct {
	Title        string   `json:"title"`
	WorkingHours int      `json:"workingHours"`
	WorkingDays  int      `json:"workingDays"`
	WeekDays     []string `json:"weekDays"`
	IsActive     bool     `json:"isActive"`
}

// RuleDTO is the wire shape of a rule.
type RuleDTO struct {
	ID           string   `json:"id"`
	WorkspaceID  string   `json:"workspaceId"`
	Title        string   `json:"title"`
	WorkingHours int      `json:"workingHours"`
	WorkingDays  int      `json:"workingDays"`
	WeekDays     []string `json:"weekDays"`
	IsActive     bool     `json:"isActive"`
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses:
// validation and conflict are both client errors (400), missing
// resources are 404, everything else is 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case core.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
	case core.IsConflict(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "conflict"})
	case core.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "internal"})
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return core.Validationf("body", "invalid JSON: %v", err)
	}
	return nil
}
