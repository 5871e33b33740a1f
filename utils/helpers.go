package utils

import "unicode/utf8"

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// NullIfEmpty returns nil for "", otherwise a pointer to s.
func NullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
