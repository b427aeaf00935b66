// Package store keeps the deduplicated teacher, room and class registry that
// accumulates across week fetches. Records are keyed by their stable key,
// merged last-write-wins and never evicted.
package store

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"timetable/internal/model"
)

// table is one kind's key→record map plus a cached sorted view.
type table[T comparable] struct {
	byKey   map[string]T
	version uint64

	sorted    []T
	sortedVer uint64
	sortedOK  bool
}

func newTable[T comparable]() table[T] {
	return table[T]{byKey: make(map[string]T)}
}

// merge inserts records, overwriting existing keys only when overwrite is
// set. The version only moves when the stored state actually changes, so
// re-merging identical data keeps the cached view.
func (t *table[T]) merge(records []T, key func(T) string, overwrite bool) int {
	changed := 0
	for _, r := range records {
		k := key(r)
		if old, ok := t.byKey[k]; ok && (old == r || !overwrite) {
			continue
		}
		t.byKey[k] = r
		changed++
	}
	if changed > 0 {
		t.version++
	}
	return changed
}

func (t *table[T]) view(cmpFn func(a, b T) int) []T {
	if !t.sortedOK || t.sortedVer != t.version {
		out := make([]T, 0, len(t.byKey))
		for _, r := range t.byKey {
			out = append(out, r)
		}
		slices.SortStableFunc(out, cmpFn)
		t.sorted = out
		t.sortedVer = t.version
		t.sortedOK = true
	}
	return slices.Clone(t.sorted)
}

// Store is the entity registry. The zero value is not usable; use New.
type Store struct {
	mu sync.RWMutex

	teachers table[model.Teacher]
	rooms    table[model.Room]
	classes  table[model.Class]

	currentWeek int

	coll *collate.Collator
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		teachers: newTable[model.Teacher](),
		rooms:    newTable[model.Room](),
		classes:  newTable[model.Class](),
		coll:     collate.New(language.Und),
	}
}

// MergeTeachers inserts or overwrites teachers by key and returns how many
// records changed.
func (s *Store) MergeTeachers(records []model.Teacher) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teachers.merge(records, func(t model.Teacher) string { return t.Key }, true)
}

// FillTeachers inserts teachers whose key is not stored yet and leaves existing
// records alone.
func (s *Store) FillTeachers(records []model.Teacher) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teachers.merge(records, func(t model.Teacher) string { return t.Key }, false)
}

// MergeRooms inserts or overwrites rooms by key.
func (s *Store) MergeRooms(records []model.Room) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.merge(records, func(r model.Room) string { return r.Key }, true)
}

// FillRooms inserts rooms whose key is not stored yet and leaves existing
// records alone.
func (s *Store) FillRooms(records []model.Room) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.merge(records, func(r model.Room) string { return r.Key }, false)
}

// MergeClasses inserts or overwrites classes by key.
func (s *Store) MergeClasses(records []model.Class) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classes.merge(records, func(c model.Class) string { return c.Key }, true)
}

// FillClasses inserts classes whose key is not stored yet and leaves existing
// records alone.
func (s *Store) FillClasses(records []model.Class) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classes.merge(records, func(c model.Class) string { return c.Key }, false)
}

func (s *Store) Teacher(key string) (model.Teacher, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teachers.byKey[key]
	return t, ok
}

func (s *Store) Room(key string) (model.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms.byKey[key]
	return r, ok
}

func (s *Store) Class(key string) (model.Class, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes.byKey[key]
	return c, ok
}

// Len returns the number of stored teachers, rooms and classes.
func (s *Store) Len() (teachers, rooms, classes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.teachers.byKey), len(s.rooms.byKey), len(s.classes.byKey)
}

// SortedTeachers returns all teachers ordered by Short.
func (s *Store) SortedTeachers() []model.Teacher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teachers.view(func(a, b model.Teacher) int {
		if c := s.coll.CompareString(a.Short, b.Short); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

// SortedRooms returns all rooms ordered by the numeric value of Display.
// Rooms whose Display does not start with a number sort after all numbered
// rooms, among themselves by Display.
func (s *Store) SortedRooms() []model.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.view(func(a, b model.Room) int {
		if c := compareNumeric(a.Display, b.Display); c != 0 {
			return c
		}
		if c := s.coll.CompareString(a.Display, b.Display); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

// SortedClasses returns all classes ordered by Display.
func (s *Store) SortedClasses() []model.Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classes.view(func(a, b model.Class) int {
		if c := s.coll.CompareString(a.Display, b.Display); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

// CurrentWeek is the week number the server last reported as current.
// Zero until the first successful fetch.
func (s *Store) CurrentWeek() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentWeek
}

func (s *Store) SetCurrentWeek(week int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentWeek = week
}

func compareNumeric(a, b string) int {
	na, okA := leadingInt(a)
	nb, okB := leadingInt(b)
	switch {
	case okA && okB:
		return cmp.Compare(na, nb)
	case okA:
		return -1
	case okB:
		return 1
	default:
		return 0
	}
}

// leadingInt parses an optional sign and the leading run of digits,
// ignoring whatever follows ("12a" is 12). Values beyond int saturate at
// math.MaxInt (or -math.MaxInt).
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		d := int(s[digits] - '0')
		if n > (math.MaxInt-d)/10 {
			n = math.MaxInt
		} else {
			n = n*10 + d
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
