package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"timetable/internal/model"
)

func ev(day, period int, class string) model.Event {
	return model.Event{DayIndex: day, PeriodIndex: period, ClassKey: class}
}

func TestBuildGrid(t *testing.T) {
	e1, e2, e3 := ev(0, 1, "e1"), ev(0, 1, "e2"), ev(1, 0, "e3")

	g := BuildGrid([]model.Event{e1, e2, e3})

	require.Equal(t, []model.Event{e1, e2}, g.Cell(0, 1))
	require.Equal(t, []model.Event{e3}, g.Cell(1, 0))
	require.Nil(t, g.Cell(0, 0))
	require.False(t, g.Has(0, 0))
	_, present := g[0][0]
	require.False(t, present)

	require.Equal(t, []int{0, 1}, g.Days())
	require.Equal(t, []int{1}, g.Periods(0))
	require.Equal(t, 3, g.Len())
}

func TestBuildGridSparseOutOfRange(t *testing.T) {
	g := BuildGrid([]model.Event{ev(4, 9, "x")})

	require.Equal(t, []int{4}, g.Days())
	require.Nil(t, g.Cell(2, 9))
	require.Len(t, g.Cell(4, 9), 1)
}

func TestBuildGridEmpty(t *testing.T) {
	g := BuildGrid(nil)
	require.Empty(t, g.Days())
	require.Zero(t, g.Len())
}

var d0 = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

func oneHourWeek() model.Week {
	return model.Week{
		Week:        42,
		Dates:       []time.Time{d0},
		HourOffsets: []model.HourOffset{{StartOffset: 0, EndOffset: 3600000}},
	}
}

func TestLocateActiveDuringPeriod(t *testing.T) {
	got := LocateActive(oneHourWeek(), d0.Add(1800000*time.Millisecond))
	require.Equal(t, model.Coord{DayIndex: 0, PeriodIndex: 0}, got)
}

func TestLocateActiveAfterLastDay(t *testing.T) {
	got := LocateActive(oneHourWeek(), d0.Add(90000000*time.Millisecond))
	require.Equal(t, model.NoCoord, got)
}

func TestLocateActiveTooFarAhead(t *testing.T) {
	got := LocateActive(oneHourWeek(), d0.Add(-50000000*time.Millisecond))
	require.Equal(t, model.NoCoord, got)
}

func TestLocateActiveUpcomingWithinWindow(t *testing.T) {
	// 07:30, first lesson at 08:00.
	w := model.Week{
		Dates: []time.Time{d0, d0.AddDate(0, 0, 1)},
		HourOffsets: []model.HourOffset{
			{StartOffset: 8 * 3600000, EndOffset: 8*3600000 + 45*60000},
			{StartOffset: 9 * 3600000, EndOffset: 9*3600000 + 45*60000},
		},
	}

	got := LocateActive(w, d0.Add(7*time.Hour+30*time.Minute))
	require.Equal(t, model.Coord{DayIndex: 0, PeriodIndex: 0}, got)

	// Between lessons the next one is active.
	got = LocateActive(w, d0.Add(8*time.Hour+50*time.Minute))
	require.Equal(t, model.Coord{DayIndex: 0, PeriodIndex: 1}, got)

	// Tuesday morning.
	got = LocateActive(w, d0.AddDate(0, 0, 1).Add(9*time.Hour+10*time.Minute))
	require.Equal(t, model.Coord{DayIndex: 1, PeriodIndex: 1}, got)
}

func TestLocateActiveAfterLastPeriodOfDay(t *testing.T) {
	w := oneHourWeek()
	w.HourOffsets[0] = model.HourOffset{StartOffset: 8 * 3600000, EndOffset: 9 * 3600000}

	got := LocateActive(w, d0.Add(15*time.Hour))
	require.Equal(t, model.NoCoord, got)
}

func TestLocateActiveEmptyWeek(t *testing.T) {
	require.Equal(t, model.NoCoord, LocateActive(model.Week{}, d0))
}

func TestNextWeeks(t *testing.T) {
	require.Equal(t, []int{8, 9}, NextWeeks(7, 2))
	require.Equal(t, []int{52, 1, 2}, NextWeeks(51, 3))
	require.Equal(t, []int{1}, NextWeeks(52, 1))
	require.Empty(t, NextWeeks(7, 0))
	require.Empty(t, NextWeeks(0, 3))
	require.Empty(t, NextWeeks(53, 3))
}

func TestNextWeeksNeverRepeats(t *testing.T) {
	weeks := NextWeeks(30, 200)
	require.Len(t, weeks, MaxWeek-1)

	seen := map[int]bool{30: true}
	for _, wk := range weeks {
		require.False(t, seen[wk], "week %d listed twice", wk)
		require.GreaterOrEqual(t, wk, 1)
		require.LessOrEqual(t, wk, MaxWeek)
		seen[wk] = true
	}
}
