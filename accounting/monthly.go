/*
monthly.go - Per-user credited days and overtime

Worked seconds are bucketed per calendar day, then folded in ascending
date order with a running overtime balance in minutes:

  hours >= 8         full day, surplus minutes feed the balance
  4 <= hours < 8     balance may top the day up to a full day, else a
                     half day and the balance is REPLACED by the day's
                     own surplus over 4h
  hours < 4          day plus balance may still yield a full or half
                     day; otherwise the day is credited as a quarter-day
                     rounded fraction of an 8h day and the balance is
                     left as-is

The half-day replacement and the untouched balance in the final branch
reproduce the behavior of the system this replaces; consumers depend on
the resulting credit totals, so both are kept verbatim.
*/
package accounting

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/clockline/time-engine/core"
	"github.com/clockline/time-engine/leave"
	"github.com/clockline/time-engine/tracking"
)

// BucketByDay sums entry durations per day-of-month of CreatedAt.
func BucketByDay(entries []*tracking.Entry) map[int]int64 {
	byDay := make(map[int]int64)
	for _, e := range entries {
		byDay[e.CreatedAt.Day()] += e.DurationSeconds
	}
	return byDay
}

// CreditWorkedDays folds the per-day worked seconds into credited days
// and returns the final carried overtime balance in minutes.
func CreditWorkedDays(secondsByDay map[int]int64) (credited float64, overtimeBalance float64) {
	days := make([]int, 0, len(secondsByDay))
	for day := range secondsByDay {
		days = append(days, day)
	}
	sort.Ints(days)

	for _, day := range days {
		seconds := secondsByDay[day]
		if seconds == 0 {
			continue
		}
		hours, minutes := core.HoursMinutes(seconds)
		dayMinutes := float64(hours*60 + minutes)

		switch {
		case hours >= 8:
			credited += 1
			overtimeBalance += float64((hours-8)*60 + minutes)

		case hours >= 4:
			combined := overtimeBalance + dayMinutes
			if combined/60 >= 8 {
				credited += 1
				overtimeBalance = combined - 480
			} else {
				credited += 0.5
				overtimeBalance = float64((hours-4)*60 + minutes)
			}

		default:
			combined := dayMinutes + overtimeBalance
			switch {
			case combined/60 >= 8:
				credited += 1
				overtimeBalance = combined - 480
			case combined/60 >= 4:
				credited += 0.5
				overtimeBalance = combined - 240
			default:
				credited += math.Round(dayMinutes/60/8*4) / 4
			}
		}
	}

	credited, _ = decimal.NewFromFloat(credited).Round(2).Float64()
	return credited, overtimeBalance
}

// LeaveTally splits a user's approved leave days by the paid flag of
// each leave's type.
type LeaveTally struct {
	Paid   float64
	Unpaid float64
	Total  float64
}

// TallyLeaves counts fullday as 1.0 and halfday as 0.5 across every
// daily detail of the approved leaves.
func TallyLeaves(leaves []*leave.Leave, catalog []leave.Type) (LeaveTally, error) {
	paidByType := make(map[string]bool, len(catalog))
	for _, t := range catalog {
		paidByType[t.Name] = t.Paid
	}

	var tally LeaveTally
	for _, l := range leaves {
		paid, ok := paidByType[l.Type]
		if !ok {
			return LeaveTally{}, fmt.Errorf("leave type %q not in workspace catalog", l.Type)
		}
		for _, d := range l.DailyDetails {
			days := d.Duration.Days()
			tally.Total += days
			if paid {
				tally.Paid += days
			} else {
				tally.Unpaid += days
			}
		}
	}
	return tally, nil
}

// ComputeUserMonthly builds one user's report row from their entries
// and approved leaves.
func ComputeUserMonthly(user Member, catalog []leave.Type, ideal IdealMonthlyHours, rule Rule, approved []*leave.Leave, entries []*tracking.Entry) (UserMonthlyReport, error) {
	tally, err := TallyLeaves(approved, catalog)
	if err != nil {
		return UserMonthlyReport{}, err
	}

	byDay := BucketByDay(entries)
	var workedSeconds int64
	for _, s := range byDay {
		workedSeconds += s
	}

	credited, _ := CreditWorkedDays(byDay)

	// The ideal workload shrinks by one working day per day of approved
	// leave, paid or not.
	idealSeconds := int64(float64(ideal.TotalRequiredWorkingHours)*3600 - tally.Total*float64(rule.WorkingHours)*3600)

	overtimeSeconds := workedSeconds - idealSeconds
	if overtimeSeconds < 0 {
		overtimeSeconds = 0
	}

	dates := make([]int, 0, len(byDay))
	for day := range byDay {
		dates = append(dates, day)
	}
	sort.Ints(dates)

	return UserMonthlyReport{
		UserID:            user.ID,
		UserName:          user.Name,
		IdealWorkingHours: core.FormatDuration(idealSeconds),
		WorkingHours:      core.FormatDuration(workedSeconds),
		Overtime:          core.FormatDuration(overtimeSeconds),
		DatesWorked:       dates,
		TotalLeaves:       tally.Total,
		PaidLeaves:        tally.Paid,
		UnpaidLeaves:      tally.Unpaid,
		CreditedDays:      credited,
	}, nil
}
