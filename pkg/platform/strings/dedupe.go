// Package strings provides string and slice manipulation utilities.
package strings

import (
	"strings"
)

// Dedupe removes repeated values from a slice. The first occurrence wins and
// order is preserved. A nil or empty input is returned as-is.
//
// Example:
//
//	Dedupe([]string{"welcome", "setup_pin", "welcome"})
//	// Returns: []string{"welcome", "setup_pin"}
func Dedupe[T comparable](values []T) []T {
	if len(values) == 0 {
		return values
	}

	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))

	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}

// AppendUnique appends v to values unless it is already present.
// The input slice is never modified; a fresh slice is returned.
func AppendUnique[T comparable](values []T, v T) []T {
	out := make([]T, 0, len(values)+1)
	for _, existing := range values {
		out = append(out, existing)
		if existing == v {
			return append(out, values[len(out):]...)
		}
	}
	return append(out, v)
}

// NormalizeKey trims whitespace and lowercases a value for case-insensitive
// lookups. An all-whitespace input yields "".
func NormalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
