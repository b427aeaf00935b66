// Package termview prints a week grid as a terminal table for the CLI.
package termview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"timetable/internal/export"
	"timetable/internal/model"
	"timetable/internal/schedule"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	activeStyle   = cellStyle.Reverse(true)
	canceledStyle = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Render draws the week as periods (rows) × days (columns). The active cell
// is marked with ▶ and canceled events with ×.
func Render(week model.Week, grid schedule.Grid, dir export.Directory, active model.Coord, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	headers := []string{fmt.Sprintf("W%d", week.Week)}
	for _, d := range week.Dates {
		headers = append(headers, d.In(loc).Format("Mon 02.01."))
	}

	rows := make([][]string, 0, len(week.HourOffsets))
	for p, slot := range week.HourOffsets {
		row := []string{fmt.Sprintf("%d. %s", p+1, clockLabel(slot.Start()))}
		for d := range week.Dates {
			row = append(row, cellText(grid.Cell(d, p), dir, active == model.Coord{DayIndex: d, PeriodIndex: p}))
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if active.Active() && row == active.PeriodIndex && col == active.DayIndex+1 {
				return activeStyle
			}
			return cellStyle
		})
	return t.Render()
}

func cellText(events []model.Event, dir export.Directory, isActive bool) string {
	if len(events) == 0 {
		if isActive {
			return "▶"
		}
		return ""
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		line := ev.Title.Short
		if line == "" {
			line = ev.Title.Long
		}
		if t, ok := dir.Teacher(ev.TeacherKey); ok && t.Short != "" {
			line += " " + t.Short
		}
		if r, ok := dir.Room(ev.ClassroomKey); ok && r.Display != "" {
			line += " @" + r.Display
		}
		if ev.Has(model.FlagCanceled) {
			line = "× " + canceledStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if isActive {
		lines[0] = "▶ " + lines[0]
	}
	return strings.Join(lines, "\n")
}

func clockLabel(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}
