// Package query validates user-supplied query parameters. Invalid values are
// reported as absent so callers fall back to their defaults.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError describes a rejected parameter value.
type ValidationError struct {
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q: %s", e.Value, e.Reason)
}

// ParseWeek accepts a week number in 1..52.
func ParseWeek(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, &ValidationError{Value: v, Reason: "week is not a number"}
	}
	if n < 1 || n > 52 {
		return 0, &ValidationError{Value: v, Reason: "week must be between 1 and 52"}
	}
	return n, nil
}

// ParseList splits a comma separated list and trims each item.
func ParseList(v string) []string {
	parts := strings.Split(v, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Param verifies the first of values. Missing or rejected values yield
// ok == false; the verifier's error is swallowed.
func Param[T any](values []string, verify func(string) (T, error)) (v T, ok bool) {
	if len(values) == 0 {
		return v, false
	}
	got, err := verify(values[0])
	if err != nil {
		return v, false
	}
	return got, true
}

// Lift adapts an infallible parser for Param.
func Lift[T any](f func(string) T) func(string) (T, error) {
	return func(s string) (T, error) { return f(s), nil }
}
