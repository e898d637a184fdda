package core

import (
	"strings"
	"time"
)

// NowFunc is mockable in tests.
var NowFunc = time.Now

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanEmail normalizes an email address for storage and lookups.
func CleanEmail(email string) string {
	return CleanString(email, true /* lower */)
}

// MonthYear formats t as a YYYY-MM label.
func MonthYear(t time.Time) string {
	return t.Format("2006-01")
}
