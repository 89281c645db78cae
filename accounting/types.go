/*
Package accounting reconciles worked time against workspace-defined
ideal hours and produces monthly reports and overtime credits.

PURPOSE:
  Once a month, every user's raw worked seconds are folded into
  fractional credited days (0, 0.25, 0.5 or 1.0 per calendar day) and
  compared against the workspace's ideal hours net of approved leave.
  Time worked beyond the ideal becomes overtime, which is banked into
  the user's "overtime" leave balance in quarter-day units the first
  time the month's report is saved.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rule: workspace calendar rules (hours/day, working weekdays)
  - Holiday: gazetted holidays reduce the ideal working days
  - IdealMonthlyHours: the month's expected workload
  - UserMonthlyReport / MonthlyReport: the computed snapshot

SEE ALSO:
  - ideal.go: ideal monthly hours (pure)
  - monthly.go: per-user credited days and overtime
  - report.go: report generation and idempotent persistence
*/
package accounting

import (
	"time"

	"github.com/clockline/time-engine/core"
)

// Rule is a workspace's calendar rule set. The engine assumes exactly
// one active rule per workspace.
type Rule struct {
	ID           string
	WorkspaceID  string
	Title        string
	WorkingHours int      // hours per working day
	WorkingDays  int      // working days per week
	WeekDays     []string // lowercase weekday names, e.g. "monday"
	IsActive     bool
}

// HolidayType distinguishes holidays that bind the whole workspace from
// optional ones.
type HolidayType string

const (
	HolidayGazetted   HolidayType = "Gazetted"
	HolidayRestricted HolidayType = "Restricted"
)

// Holiday is a workspace calendar holiday. Only gazetted holidays feed
// the ideal-hours computation.
type Holiday struct {
	ID          string
	WorkspaceID string
	Title       string
	Description string
	Date        time.Time
	Type        HolidayType
}

// Member is a workspace user as seen by the accounting engine.
type Member struct {
	ID   string
	Name string
}

// IdealMonthlyHours is the expected workload for a workspace month.
type IdealMonthlyHours struct {
	TotalRequiredWorkingHours int   `json:"totalRequiredWorkingHours"`
	TotalRequiredWorkingDays  int   `json:"totalRequiredWorkingDays"`
	TotalDaysInMonth          int   `json:"totalDaysInMonth"`
	WeekendDays               []int `json:"weekendDays"`      // days of month falling outside working weekdays
	GazettedHolidays          []int `json:"gazettedHolidays"` // days of month lost to gazetted holidays
}

// UserMonthlyReport is one user's row in a monthly report.
type UserMonthlyReport struct {
	UserID            string   `json:"userId"`
	UserName          string   `json:"user"`
	IdealWorkingHours core.HMS `json:"userIdealWorkingHours"`
	WorkingHours      core.HMS `json:"userWorkingHour"`
	Overtime          core.HMS `json:"overtime"`
	DatesWorked       []int    `json:"datesUserWorked"`
	TotalLeaves       float64  `json:"totalLeaves"`
	PaidLeaves        float64  `json:"paidLeaves"`
	UnpaidLeaves      float64  `json:"unpaidLeaves"`
	CreditedDays      float64  `json:"numberOfDaysWorked"`
}

// MonthlyReport is the persisted snapshot for (month, year).
//
// The lookup key deliberately omits the workspace: that matches the
// system this replaces, and reports are replaced in full on re-save, so
// widening the key without coverage would silently change scope.
type MonthlyReport struct {
	ID              string
	WorkspaceID     string
	Month           time.Month
	Year            int
	Ideal           IdealMonthlyHours
	Rows            []UserMonthlyReport
	OvertimeAccrued bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReportPayload is the computed (not yet persisted) monthly report.
type ReportPayload struct {
	Ideal IdealMonthlyHours   `json:"idealMonthlyHours"`
	Rows  []UserMonthlyReport `json:"userMonthlyHours"`
}
