/*
ideal.go - Ideal monthly hours

A pure computation: given the active rule's working weekdays and the
month's gazetted holidays,

  idealWorkingDays  = totalDays - weekendCount - gazettedHolidayCount
  idealWorkingHours = idealWorkingDays * rule.WorkingHours

A holiday falling on a non-working weekday is already excluded by the
weekend count and must not be counted twice.
*/
package accounting

import (
	"time"

	"github.com/clockline/time-engine/core"
)

// CalculateIdealMonthlyHours computes the expected workload for
// (year, month). holidays should already be filtered to gazetted
// holidays in the month's range; entries of other types are ignored.
func CalculateIdealMonthlyHours(rule Rule, holidays []Holiday, year int, month time.Month) IdealMonthlyHours {
	working := core.NewWeekdaySet(rule.WeekDays)
	totalDays := core.DaysInMonth(year, month)

	var weekendDays []int
	for day := 1; day <= totalDays; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if !working.Contains(date.Weekday()) {
			weekendDays = append(weekendDays, day)
		}
	}

	var gazetted []int
	for _, h := range holidays {
		if h.Type != HolidayGazetted {
			continue
		}
		if working.Contains(h.Date.Weekday()) {
			gazetted = append(gazetted, h.Date.Day())
		}
	}

	workingDays := totalDays - len(weekendDays) - len(gazetted)
	return IdealMonthlyHours{
		TotalRequiredWorkingHours: workingDays * rule.WorkingHours,
		TotalRequiredWorkingDays:  workingDays,
		TotalDaysInMonth:          totalDays,
		WeekendDays:               weekendDays,
		GazettedHolidays:          gazetted,
	}
}
