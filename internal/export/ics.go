// Package export turns a fetched week into an iCalendar feed.
package export

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"timetable/internal/model"
	"timetable/internal/schedule"
)

const ProductID = "-//timetable//Urnik//SL"

// Directory looks up the entities referenced by events. *store.Store
// implements it.
type Directory interface {
	Teacher(key string) (model.Teacher, bool)
	Room(key string) (model.Room, bool)
	Class(key string) (model.Class, bool)
}

// Options tweak the generated calendar.
type Options struct {
	// Name is written as X-WR-CALNAME when set.
	Name string
	// Stamp is used for DTSTAMP; zero means time.Now.
	Stamp time.Time
}

// WeekCalendar adds one VEVENT per grid event to a new calendar. Events
// whose day or period index has no matching date or hour offset are
// skipped, since they cannot be placed in time.
func WeekCalendar(week model.Week, grid schedule.Grid, dir Directory, opts Options) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for _, d := range grid.Days() {
		date, ok := week.Date(d)
		if !ok {
			continue
		}
		for _, p := range grid.Periods(d) {
			slot, ok := week.Period(p)
			if !ok {
				continue
			}
			for i, ev := range grid.Cell(d, p) {
				addEvent(cal, week.Week, i, ev, date, slot, dir, stamp)
			}
		}
	}
	return cal
}

// AppendWeek merges the events of another week into cal.
func AppendWeek(cal *ical.Calendar, week model.Week, grid schedule.Grid, dir Directory, stamp time.Time) {
	other := WeekCalendar(week, grid, dir, Options{Stamp: stamp})
	for _, e := range other.Events() {
		cal.AddVEvent(e)
	}
}

func addEvent(cal *ical.Calendar, weekNo, idx int, ev model.Event, date time.Time, slot model.HourOffset, dir Directory, stamp time.Time) {
	uid := fmt.Sprintf("w%d-d%d-p%d-%s-%d@timetable", weekNo, ev.DayIndex, ev.PeriodIndex, ev.ClassKey, idx)
	e := cal.AddEvent(uid)
	e.SetDtStampTime(stamp)
	e.SetStartAt(date.Add(slot.Start()))
	e.SetEndAt(date.Add(slot.End()))

	summary := ev.Title.Long
	if summary == "" {
		summary = ev.Title.Short
	}
	if c, ok := dir.Class(ev.ClassKey); ok && c.Display != "" {
		summary += " (" + c.Display + ")"
	}
	e.SetSummary(summary)

	if ev.ClassroomKey != "" {
		if r, ok := dir.Room(ev.ClassroomKey); ok {
			e.SetLocation(r.Display)
		}
	}
	if ev.TeacherKey != "" {
		if t, ok := dir.Teacher(ev.TeacherKey); ok {
			e.SetDescription(t.FullName)
		}
	}

	if len(ev.Flags) > 0 {
		flags := make([]string, len(ev.Flags))
		for i, f := range ev.Flags {
			flags[i] = string(f)
		}
		e.AddProperty(ical.ComponentPropertyCategories, strings.Join(flags, ","))
	}
	if ev.Has(model.FlagCanceled) {
		e.SetStatus(ical.ObjectStatusCancelled)
	} else {
		e.SetStatus(ical.ObjectStatusConfirmed)
	}
}
