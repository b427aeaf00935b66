package schedule

import (
	"time"

	"timetable/internal/model"
)

const (
	day = 24 * time.Hour

	// RecencyWindow bounds how far a nominal match may lie from now before
	// it stops counting as active.
	RecencyWindow = day / 2
)

// LocateActive returns the (day, period) cell running at now, or
// model.NoCoord.
//
// The day is the first date that has not fully elapsed (now − date < 24h).
// The period is the first one on that day that has not ended or not started
// yet. A match whose start lies more than RecencyWindow away from now is
// dropped, so a lesson many hours ahead is not highlighted.
func LocateActive(week model.Week, now time.Time) model.Coord {
	dayIndex := -1
	var dayOffset time.Duration
	for i, d := range week.Dates {
		off := now.Sub(d)
		if off < day {
			dayIndex, dayOffset = i, off
			break
		}
	}
	if dayIndex < 0 {
		return model.NoCoord
	}

	periodIndex := -1
	for j, h := range week.HourOffsets {
		if h.End() >= dayOffset || h.Start() >= dayOffset {
			periodIndex = j
			break
		}
	}
	if periodIndex < 0 {
		return model.NoCoord
	}

	start := week.Dates[dayIndex].Add(week.HourOffsets[periodIndex].Start())
	if absDuration(start.Sub(now)) > RecencyWindow {
		return model.NoCoord
	}

	return model.Coord{DayIndex: dayIndex, PeriodIndex: periodIndex}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
