package core

import (
	"strings"
	"time"
)

// NowFunc returns the current time. Overridden in tests.
var NowFunc = time.Now // mockable

// Now returns the current UTC time truncated to the second.
func Now() time.Time {
	return NowFunc().UTC().Truncate(time.Second)
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
