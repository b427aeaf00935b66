// Package schedule reshapes a week's flat event list into a day × period
// grid and locates the cell that is currently running.
package schedule

import (
	"maps"
	"slices"

	"timetable/internal/model"
)

// Grid is a sparse day → period → events table. Days and periods without
// events are absent; Cell returns nil for them, so absent and empty read the
// same. A Grid is only meaningful together with the Week it was built for.
type Grid map[int]map[int][]model.Event

// BuildGrid places events into their (day, period) cells, keeping input
// order inside a cell. Indices are not bounds-checked.
func BuildGrid(events []model.Event) Grid {
	g := make(Grid)
	for _, ev := range events {
		row, ok := g[ev.DayIndex]
		if !ok {
			row = make(map[int][]model.Event)
			g[ev.DayIndex] = row
		}
		row[ev.PeriodIndex] = append(row[ev.PeriodIndex], ev)
	}
	return g
}

// Cell returns the events in (day, period), or nil.
func (g Grid) Cell(day, period int) []model.Event {
	return g[day][period]
}

// Has reports whether (day, period) holds at least one event.
func (g Grid) Has(day, period int) bool {
	return len(g[day][period]) > 0
}

// Days returns the day indices present, ascending.
func (g Grid) Days() []int {
	return slices.Sorted(maps.Keys(g))
}

// Periods returns the period indices present on day, ascending.
func (g Grid) Periods(day int) []int {
	return slices.Sorted(maps.Keys(g[day]))
}

// Len counts all events in the grid.
func (g Grid) Len() int {
	n := 0
	for _, row := range g {
		for _, cell := range row {
			n += len(cell)
		}
	}
	return n
}
