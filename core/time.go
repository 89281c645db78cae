package core

import (
	"strings"
	"time"
)

// =============================================================================
// WEEKDAYS - Workspace rules name working days in lowercase English
// =============================================================================

var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

// WeekdayName returns the lowercase English name used by workspace rules.
func WeekdayName(d time.Weekday) string { return weekdayNames[d] }

// WeekdaySet is a case-insensitive membership set of weekday names.
type WeekdaySet map[string]struct{}

// NewWeekdaySet builds a set from rule weekday names.
func NewWeekdaySet(names []string) WeekdaySet {
	s := make(WeekdaySet, len(names))
	for _, n := range names {
		s[strings.ToLower(n)] = struct{}{}
	}
	return s
}

// Contains reports whether the weekday is a working day.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	_, ok := s[WeekdayName(d)]
	return ok
}

// =============================================================================
// CALENDAR HELPERS
// =============================================================================

// DaysInMonth returns the number of calendar days in (year, month).
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// =============================================================================
// DURATIONS - Worked time is tracked as whole seconds
// =============================================================================

// HMS is a duration split into hours, minutes and seconds for reports.
type HMS struct {
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// FormatDuration splits seconds into an HMS triple.
func FormatDuration(seconds int64) HMS {
	return HMS{
		Hours:   seconds / 3600,
		Minutes: (seconds % 3600) / 60,
		Seconds: seconds % 60,
	}
}

// TotalSeconds is the inverse of FormatDuration.
func (h HMS) TotalSeconds() int64 {
	return h.Hours*3600 + h.Minutes*60 + h.Seconds
}

// HoursMinutes truncates seconds into whole hours and leftover whole
// minutes. The monthly crediting fold branches on these values.
func HoursMinutes(seconds int64) (hours, minutes int64) {
	return seconds / 3600, (seconds % 3600) / 60
}

// IntervalSeconds returns the whole seconds between start and end,
// truncated toward zero.
func IntervalSeconds(start, end time.Time) int64 {
	return end.Sub(start).Milliseconds() / 1000
}
