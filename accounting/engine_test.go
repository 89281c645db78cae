package accounting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clockline/time-engine/accounting"
	"github.com/clockline/time-engine/core"
	"github.com/clockline/time-engine/leave"
	"github.com/clockline/time-engine/store/sqlite"
	"github.com/clockline/time-engine/tracking"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var weekdayRule = accounting.Rule{
	ID:           "rule-1",
	WorkspaceID:  "ws-1",
	Title:        "default",
	WorkingHours: 8,
	WorkingDays:  5,
	WeekDays:     []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
	IsActive:     true,
}

func april(day int) time.Time {
	return time.Date(2025, time.April, day, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// IDEAL HOURS TESTS
// =============================================================================

func TestCalculateIdealMonthlyHours_WeekendsOnly(t *testing.T) {
	// April 2025 has 30 days and 8 weekend days on a Mon-Fri week.
	ideal := accounting.CalculateIdealMonthlyHours(weekdayRule, nil, 2025, time.April)

	assert.Equal(t, 30, ideal.TotalDaysInMonth)
	assert.Equal(t, []int{5, 6, 12, 13, 19, 20, 26, 27}, ideal.WeekendDays)
	assert.Equal(t, 22, ideal.TotalRequiredWorkingDays)
	assert.Equal(t, 176, ideal.TotalRequiredWorkingHours)
}

func TestCalculateIdealMonthlyHours_GazettedHolidayDecrements(t *testing.T) {
	// GIVEN: A gazetted holiday on a working Friday and a restricted one
	// WHEN: Computing the ideal hours
	// THEN: Only the gazetted holiday reduces the working days

	holidays := []accounting.Holiday{
		{ID: "h1", Date: april(18), Type: accounting.HolidayGazetted},
		{ID: "h2", Date: april(23), Type: accounting.HolidayRestricted},
	}
	ideal := accounting.CalculateIdealMonthlyHours(weekdayRule, holidays, 2025, time.April)

	assert.Equal(t, 21, ideal.TotalRequiredWorkingDays)
	assert.Equal(t, 168, ideal.TotalRequiredWorkingHours)
	assert.Equal(t, []int{18}, ideal.GazettedHolidays)
}

func TestCalculateIdealMonthlyHours_HolidayOnWeekend_NotDoubleCounted(t *testing.T) {
	holidays := []accounting.Holiday{
		{ID: "h1", Date: april(6), Type: accounting.HolidayGazetted}, // a Sunday
	}
	ideal := accounting.CalculateIdealMonthlyHours(weekdayRule, holidays, 2025, time.April)

	assert.Equal(t, 22, ideal.TotalRequiredWorkingDays)
	assert.Empty(t, ideal.GazettedHolidays)
}

// =============================================================================
// CREDITED DAYS TESTS
// =============================================================================

func TestCreditWorkedDays_FullDayWithSurplus(t *testing.T) {
	credited, balance := accounting.CreditWorkedDays(map[int]int64{
		1: 9*3600 + 30*60, // 9h30m
	})
	assert.Equal(t, 1.0, credited)
	assert.Equal(t, 90.0, balance)
}

func TestCreditWorkedDays_HalfDayReplacesBalance(t *testing.T) {
	// GIVEN: A 4.5h day with no carried balance
	// THEN: Half a day is credited and the balance becomes the day's own
	//       surplus over four hours (30 minutes)

	credited, balance := accounting.CreditWorkedDays(map[int]int64{
		1: 4*3600 + 30*60,
	})
	assert.Equal(t, 0.5, credited)
	assert.Equal(t, 30.0, balance)
}

func TestCreditWorkedDays_HalfDayReplacesNonzeroBalance(t *testing.T) {
	// GIVEN: Day 1 leaves 90 surplus minutes; day 2 works 5h
	// WHEN: The combined minutes (390) stay below a full day
	// THEN: The carried balance is REPLACED by day 2's own surplus over
	//       four hours (60), not accumulated to 150

	credited, balance := accounting.CreditWorkedDays(map[int]int64{
		1: 9*3600 + 30*60,
		2: 5 * 3600,
	})
	assert.Equal(t, 1.5, credited)
	assert.Equal(t, 60.0, balance)
}

func TestCreditWorkedDays_ShortDayFraction_LeavesBalanceUntouched(t *testing.T) {
	// GIVEN: Day 1 leaves 60 surplus minutes; day 2 works 1h
	// WHEN: The combined minutes (120) reach neither a half nor full day
	// THEN: Day 2 is credited as a quarter-day fraction on its own and
	//       the carried balance stays exactly 60

	credited, balance := accounting.CreditWorkedDays(map[int]int64{
		1: 9 * 3600,
		2: 1 * 3600,
	})
	assert.Equal(t, 1.25, credited)
	assert.Equal(t, 60.0, balance)
}

func TestCreditWorkedDays_BalanceTopsUpMidDay(t *testing.T) {
	// Day 1 leaves 90 surplus minutes; day 2 works 6h30m. Combined
	// 480 minutes reach a full day and the balance resets to zero.
	credited, balance := accounting.CreditWorkedDays(map[int]int64{
		1: 9*3600 + 30*60,
		2: 6*3600 + 30*60,
	})
	assert.Equal(t, 2.0, credited)
	assert.Equal(t, 0.0, balance)
}

func TestCreditWorkedDays_ShortDayBranches(t *testing.T) {
	cases := []struct {
		name     string
		byDay    map[int]int64
		credited float64
		balance  float64
	}{
		{
			// 2h alone: quarter-day rounding of 2/8 of a day.
			name:     "short day quarter rounding",
			byDay:    map[int]int64{1: 2 * 3600},
			credited: 0.25,
			balance:  0,
		},
		{
			// 3h day + 300 carried minutes = 480 combined: full day.
			name:     "short day plus balance reaches full day",
			byDay:    map[int]int64{1: 13 * 3600, 2: 3 * 3600},
			credited: 2.0,
			balance:  0,
		},
		{
			// 2h day + 150 carried = 270 combined >= 4h: half day,
			// balance keeps the surplus over 4h.
			name:     "short day plus balance reaches half day",
			byDay:    map[int]int64{1: 10*3600 + 30*60, 2: 2 * 3600},
			credited: 1.5,
			balance:  30,
		},
		{
			name:     "zero-second day skipped",
			byDay:    map[int]int64{1: 0, 2: 8 * 3600},
			credited: 1.0,
			balance:  0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			credited, balance := accounting.CreditWorkedDays(tc.byDay)
			assert.Equal(t, tc.credited, credited)
			assert.Equal(t, tc.balance, balance)
		})
	}
}

// =============================================================================
// LEAVE TALLY TESTS
// =============================================================================

func TestTallyLeaves_SplitsByPaidFlag(t *testing.T) {
	catalog := []leave.Type{
		{Name: "casual", Paid: true},
		{Name: "unpaid", Paid: false},
	}
	leaves := []*leave.Leave{
		{Type: "casual", DailyDetails: []leave.DayDetail{
			{Day: april(7), Duration: leave.FullDay},
			{Day: april(8), Duration: leave.HalfDay},
		}},
		{Type: "unpaid", DailyDetails: []leave.DayDetail{
			{Day: april(9), Duration: leave.FullDay},
		}},
	}

	tally, err := accounting.TallyLeaves(leaves, catalog)
	require.NoError(t, err)
	assert.Equal(t, 1.5, tally.Paid)
	assert.Equal(t, 1.0, tally.Unpaid)
	assert.Equal(t, 2.5, tally.Total)
}

func TestTallyLeaves_UnknownType_Errors(t *testing.T) {
	leaves := []*leave.Leave{{Type: "ghost"}}
	_, err := accounting.TallyLeaves(leaves, []leave.Type{{Name: "casual", Paid: true}})
	assert.Error(t, err)
}

// =============================================================================
// OVERTIME CREDIT TESTS
// =============================================================================

func TestQuarterDayCredit_RoundsToQuarters(t *testing.T) {
	dayWork := decimal.NewFromInt(8 * 3600)

	cases := []struct {
		overtimeSeconds int64
		want            string
	}{
		{2 * 3600, "0.25"},  // exactly a quarter day
		{4 * 3600, "0.5"},   // half day
		{3 * 3600, "0.5"},   // 0.38 rounds up
		{30 * 60, "0"},      // 0.06 rounds down
		{9 * 3600, "1.25"},  // more than a day
		{0, "0"},
	}
	for _, tc := range cases {
		got := accounting.QuarterDayCredit(tc.overtimeSeconds, dayWork)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"overtime %ds: want %s got %s", tc.overtimeSeconds, tc.want, got)
	}
}

func TestQuarterDayCredit_ZeroWorkingDay(t *testing.T) {
	assert.True(t, accounting.QuarterDayCredit(3600, decimal.Zero).IsZero())
}

// =============================================================================
// REPORT GENERATION AND PERSISTENCE
// =============================================================================

func newTestEngine(t *testing.T) (*accounting.Engine, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	require.NoError(t, store.SaveRule(ctx, weekdayRule))
	require.NoError(t, store.SaveLeaveTypes(ctx, "ws-1", []leave.Type{
		{Name: "casual", Paid: true},
		{Name: "overtime", Paid: true},
		{Name: "unpaid", Paid: false},
	}))
	require.NoError(t, store.SaveMember(ctx, "ws-1", accounting.Member{ID: "user-1", Name: "Asha"}))
	require.NoError(t, store.InsertBalance(ctx, leave.NewBalance("bal-1", "user-1", "ws-1", []leave.Type{
		{Name: "casual", Paid: true},
		{Name: "overtime", Paid: true},
	})))

	engine := accounting.NewEngine(store, store, store, store, store, store, store, store)
	return engine, store
}

func monthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

func seedEntry(t *testing.T, store *sqlite.Store, day int, seconds int64) {
	t.Helper()
	created := april(day).Add(9 * time.Hour)
	require.NoError(t, store.InsertEntry(context.Background(), &tracking.Entry{
		ID:              "entry-" + created.Format("02"),
		UserID:          "user-1",
		WorkspaceID:     "ws-1",
		ProjectID:       "proj-1",
		Title:           "work",
		StartTimes:      []time.Time{created},
		EndTimes:        []time.Time{created.Add(time.Duration(seconds) * time.Second)},
		DurationSeconds: seconds,
		CreatedAt:       created,
	}))
}

func TestEngine_Generate_BuildsUserRows(t *testing.T) {
	// GIVEN: One gazetted holiday, a 2-day approved leave and a 9h day
	// WHEN: Generating April's report
	// THEN: The row reflects ideal hours net of leave, worked time,
	//       credited days and leave tallies

	engine, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHoliday(ctx, accounting.Holiday{
		ID: "h1", WorkspaceID: "ws-1", Title: "spring festival",
		Date: april(18), Type: accounting.HolidayGazetted,
	}))
	require.NoError(t, store.InsertLeave(ctx, &leave.Leave{
		ID: "leave-1", UserID: "user-1", WorkspaceID: "ws-1",
		Type: "casual", Status: leave.StatusApproved, Title: "trip",
		StartDate: april(21), EndDate: april(22), NumberOfDays: 2,
		DailyDetails: []leave.DayDetail{
			{Day: april(21), Duration: leave.FullDay},
			{Day: april(22), Duration: leave.FullDay},
		},
		BalanceID: "bal-1", CreatedAt: april(1),
	}))
	seedEntry(t, store, 7, 9*3600)

	start, end := monthBounds(2025, time.April)
	payload, err := engine.Generate(ctx, "ws-1", 2025, time.April, start, end)
	require.NoError(t, err)

	assert.Equal(t, 21, payload.Ideal.TotalRequiredWorkingDays)
	require.Len(t, payload.Rows, 1)

	row := payload.Rows[0]
	assert.Equal(t, "user-1", row.UserID)
	assert.Equal(t, "Asha", row.UserName)
	// 168h ideal minus 2 leave days of 8h.
	assert.Equal(t, int64(152), row.IdealWorkingHours.Hours)
	assert.Equal(t, int64(9), row.WorkingHours.Hours)
	assert.Equal(t, int64(0), row.Overtime.Hours)
	assert.Equal(t, []int{7}, row.DatesWorked)
	assert.Equal(t, 2.0, row.TotalLeaves)
	assert.Equal(t, 2.0, row.PaidLeaves)
	assert.Equal(t, 0.0, row.UnpaidLeaves)
	assert.Equal(t, 1.0, row.CreditedDays)
}

func TestEngine_Save_AccruesOvertimeOnlyOnce(t *testing.T) {
	// GIVEN: A payload with 2h of overtime for user-1
	// WHEN: Saving the month twice
	// THEN: The overtime balance is credited 0.25 days exactly once and
	//       the second save only replaces the snapshot

	engine, store := newTestEngine(t)
	ctx := context.Background()

	payload := &accounting.ReportPayload{
		Ideal: accounting.CalculateIdealMonthlyHours(weekdayRule, nil, 2025, time.April),
		Rows: []accounting.UserMonthlyReport{{
			UserID:   "user-1",
			UserName: "Asha",
			Overtime: core.FormatDuration(2 * 3600),
		}},
	}

	report, err := engine.Save(ctx, "ws-1", time.April, 2025, payload)
	require.NoError(t, err)
	assert.True(t, report.OvertimeAccrued)

	balance, err := store.GetBalance(ctx, "user-1", "ws-1")
	require.NoError(t, err)
	assert.True(t, balance.Get("overtime").Value.Equal(decimal.RequireFromString("0.25")))

	// Re-save with more rows: no second accrual.
	payload.Rows[0].CreditedDays = 21
	again, err := engine.Save(ctx, "ws-1", time.April, 2025, payload)
	require.NoError(t, err)
	assert.Equal(t, report.ID, again.ID)

	balance, err = store.GetBalance(ctx, "user-1", "ws-1")
	require.NoError(t, err)
	assert.True(t, balance.Get("overtime").Value.Equal(decimal.RequireFromString("0.25")),
		"accrual must not repeat on re-save")

	persisted, err := store.GetReport(ctx, time.April, 2025)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, 21.0, persisted.Rows[0].CreditedDays)
}

func TestEngine_Save_SkipsUsersWithoutLedger(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	payload := &accounting.ReportPayload{
		Rows: []accounting.UserMonthlyReport{{
			UserID:   "ghost",
			Overtime: core.FormatDuration(4 * 3600),
		}},
	}
	_, err := engine.Save(ctx, "ws-1", time.May, 2025, payload)
	require.NoError(t, err)

	_, err = store.GetBalance(ctx, "ghost", "ws-1")
	assert.ErrorIs(t, err, core.ErrBalanceNotFound)
}

// brokenBalanceStore simulates a store failure on ledger reads.
type brokenBalanceStore struct {
	leave.BalanceStore
}

func (brokenBalanceStore) GetBalance(context.Context, string, string) (*leave.Balance, error) {
	return nil, errors.New("disk I/O error")
}

func TestEngine_Save_BalanceStoreFailure_Surfaces(t *testing.T) {
	// A failing ledger read during accrual must abort the save, not be
	// skipped like a missing ledger.
	_, store := newTestEngine(t)
	engine := accounting.NewEngine(store, store, store, store, store, store,
		brokenBalanceStore{store}, store)

	payload := &accounting.ReportPayload{
		Rows: []accounting.UserMonthlyReport{{
			UserID:   "user-1",
			Overtime: core.FormatDuration(2 * 3600),
		}},
	}
	_, err := engine.Save(context.Background(), "ws-1", time.June, 2025, payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")

	report, err := store.GetReport(context.Background(), time.June, 2025)
	require.NoError(t, err)
	assert.Nil(t, report, "failed accrual must not persist the report")
}

func TestEngine_Generate_NoActiveRule_NotFound(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := accounting.NewEngine(store, store, store, store, store, store, store, store)
	start, end := monthBounds(2025, time.April)
	_, err = engine.Generate(context.Background(), "ws-1", 2025, time.April, start, end)
	assert.ErrorIs(t, err, core.ErrRuleNotFound)
}
