package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ErrNotFound is returned when an argument matches no entity of the kind.
var ErrNotFound = errors.New("entity not found")

// Kind names one of the three entity tables.
type Kind string

const (
	KindTeacher Kind = "teacher"
	KindRoom    Kind = "room"
	KindClass   Kind = "class"
)

// ParseKind accepts the kind names used in share links.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "teacher", "teachers":
		return KindTeacher, nil
	case "room", "rooms", "classroom":
		return KindRoom, nil
	case "class", "classes":
		return KindClass, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
}

type candidate struct {
	key   string
	names []string
}

// Resolve maps a free-form argument (key, short name, full name, initials or
// display label) onto an entity key. Exact case-insensitive matches win;
// otherwise the closest name by edit distance is accepted when it is within
// a quarter of the argument's length.
func (s *Store) Resolve(kind Kind, arg string) (string, error) {
	needle := strings.ToLower(strings.TrimSpace(arg))
	if needle == "" {
		return "", ErrNotFound
	}

	cands := s.candidates(kind)
	if cands == nil {
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}

	exact := ""
	for _, c := range cands {
		for _, n := range c.names {
			if n == needle && (exact == "" || c.key < exact) {
				exact = c.key
			}
		}
	}
	if exact != "" {
		return exact, nil
	}

	limit := max(1, len([]rune(needle))/4)
	bestKey, bestDist := "", limit+1
	for _, c := range cands {
		for _, n := range c.names {
			if n == "" {
				continue
			}
			d := levenshtein.ComputeDistance(needle, n)
			if d < bestDist || (d == bestDist && c.key < bestKey) {
				bestKey, bestDist = c.key, d
			}
		}
	}
	if bestKey == "" {
		return "", fmt.Errorf("%s %q: %w", kind, arg, ErrNotFound)
	}
	return bestKey, nil
}

func (s *Store) candidates(kind Kind) []candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []candidate{}
	switch kind {
	case KindTeacher:
		for k, t := range s.teachers.byKey {
			out = append(out, candidate{key: k, names: lower(k, t.Short, t.FullName, t.Initials)})
		}
	case KindRoom:
		for k, r := range s.rooms.byKey {
			out = append(out, candidate{key: k, names: lower(k, r.Display)})
		}
	case KindClass:
		for k, c := range s.classes.byKey {
			out = append(out, candidate{key: k, names: lower(k, c.Display)})
		}
	default:
		return nil
	}
	return out
}

func lower(ss ...string) []string {
	for i, s := range ss {
		ss[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return ss
}
