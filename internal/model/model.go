package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Teacher is a staff member as reported by the backend.
type Teacher struct {
	Key      string `json:"key" validate:"required"`
	Short    string `json:"short"`
	FullName string `json:"fullName"`
	Initials string `json:"initials"`
}

// Room is a classroom. Display is usually a room number, but not always.
type Room struct {
	Key     string `json:"key" validate:"required"`
	Display string `json:"display"`
	ID      int    `json:"id"`
}

// Class is a student group (e.g. "3.B").
type Class struct {
	Key     string `json:"key" validate:"required"`
	Display string `json:"display"`
	ID      int    `json:"id"`
}

// HourOffset is one period slot, in milliseconds relative to the start of
// the day it is applied to.
type HourOffset struct {
	StartOffset int64 `json:"startOffset" validate:"gte=0"`
	EndOffset   int64 `json:"endOffset" validate:"gte=0"`
}

// Start returns the start offset as a duration.
func (h HourOffset) Start() time.Duration { return time.Duration(h.StartOffset) * time.Millisecond }

// End returns the end offset as a duration.
func (h HourOffset) End() time.Duration { return time.Duration(h.EndOffset) * time.Millisecond }

// Week pairs a server week number with its dates and period table.
// Dates[i] belongs to day index i, HourOffsets[j] to period index j.
type Week struct {
	Week        int          `json:"week"`
	Dates       []time.Time  `json:"dates"`
	HourOffsets []HourOffset `json:"hourOffsets"`
}

// Date returns the date of the given day index.
func (w Week) Date(day int) (time.Time, bool) {
	if day < 0 || day >= len(w.Dates) {
		return time.Time{}, false
	}
	return w.Dates[day], true
}

// Period returns the hour offset of the given period index.
func (w Week) Period(period int) (HourOffset, bool) {
	if period < 0 || period >= len(w.HourOffsets) {
		return HourOffset{}, false
	}
	return w.HourOffsets[period], true
}

// Title holds the long and abbreviated subject name of an event.
type Title struct {
	Long  string `json:"long"`
	Short string `json:"short"`
}

// Event is one scheduled occurrence anchored to a day and period.
type Event struct {
	PeriodIndex  int          `json:"periodIndex" validate:"gte=0"`
	DayIndex     int          `json:"dayIndex" validate:"gte=0"`
	ClassKey     string       `json:"classKey"`
	Title        Title        `json:"title"`
	Flags        []PeriodFlag `json:"flags"`
	TeacherKey   string       `json:"teacherKey,omitempty"`
	ClassroomKey string       `json:"classroomKey,omitempty"`
}

// Has reports whether the event carries flag f.
func (e Event) Has(f PeriodFlag) bool {
	for _, x := range e.Flags {
		if x == f {
			return true
		}
	}
	return false
}

// PeriodFlag marks special events (substitutions, cancellations, ...).
type PeriodFlag string

const (
	FlagSubstitute  PeriodFlag = "SUBSTITUTE"
	FlagReplacement PeriodFlag = "REPLACEMENT"
	FlagCanceled    PeriodFlag = "CANCELED"
	FlagNotDone     PeriodFlag = "NOTDONE"
	FlagEvent       PeriodFlag = "EVENT"
	FlagOfficeHours PeriodFlag = "OFFICEHOURS"
	FlagHalfTime    PeriodFlag = "HALFTIME"
	FlagClub        PeriodFlag = "CLUB"
)

// Flags lists every known PeriodFlag.
var Flags = []PeriodFlag{
	FlagSubstitute,
	FlagReplacement,
	FlagCanceled,
	FlagNotDone,
	FlagEvent,
	FlagOfficeHours,
	FlagHalfTime,
	FlagClub,
}

// Valid reports whether f is one of the known flags.
func (f PeriodFlag) Valid() bool {
	for _, x := range Flags {
		if x == f {
			return true
		}
	}
	return false
}

func (f *PeriodFlag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	pf := PeriodFlag(s)
	if !pf.Valid() {
		return fmt.Errorf("unknown period flag %q", s)
	}
	*f = pf
	return nil
}

// Coord addresses one cell of the week grid. -1 in both fields means no cell.
type Coord struct {
	DayIndex    int `json:"dayIndex"`
	PeriodIndex int `json:"periodIndex"`
}

// NoCoord is returned when nothing is active.
var NoCoord = Coord{DayIndex: -1, PeriodIndex: -1}

// Active reports whether c points at a real cell.
func (c Coord) Active() bool {
	return c.DayIndex >= 0 && c.PeriodIndex >= 0
}
