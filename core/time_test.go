package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clockline/time-engine/core"
)

func TestWeekdaySet_CaseInsensitive(t *testing.T) {
	s := core.NewWeekdaySet([]string{"Monday", "FRIDAY"})

	assert.True(t, s.Contains(time.Monday))
	assert.True(t, s.Contains(time.Friday))
	assert.False(t, s.Contains(time.Saturday))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, core.DaysInMonth(2025, time.January))
	assert.Equal(t, 28, core.DaysInMonth(2025, time.February))
	assert.Equal(t, 29, core.DaysInMonth(2024, time.February))
	assert.Equal(t, 30, core.DaysInMonth(2025, time.April))
	assert.Equal(t, 31, core.DaysInMonth(2025, time.December))
}

func TestFormatDuration_RoundTrip(t *testing.T) {
	h := core.FormatDuration(2*3600 + 34*60 + 56)
	assert.Equal(t, core.HMS{Hours: 2, Minutes: 34, Seconds: 56}, h)
	assert.Equal(t, int64(2*3600+34*60+56), h.TotalSeconds())

	assert.Equal(t, core.HMS{}, core.FormatDuration(0))
}

func TestHoursMinutes_Truncates(t *testing.T) {
	hours, minutes := core.HoursMinutes(4*3600 + 30*60 + 59)
	assert.Equal(t, int64(4), hours)
	assert.Equal(t, int64(30), minutes)
}

func TestIntervalSeconds_FloorsSubSeconds(t *testing.T) {
	start := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(90), core.IntervalSeconds(start, start.Add(90*time.Second)))
	// 999ms of a partial second never count.
	assert.Equal(t, int64(90), core.IntervalSeconds(start, start.Add(90*time.Second+999*time.Millisecond)))
	assert.Equal(t, int64(0), core.IntervalSeconds(start, start))
}
