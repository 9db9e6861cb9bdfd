// Package datefmt formats calendar dates for display.
package datefmt

import (
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DisplayLayout is the default display format ("Jun 12, 2025").
const DisplayLayout = "Jan 02, 2006"

// Invalid is returned by the display helpers for unparseable input.
const Invalid = "Invalid date"

var layouts = []string{"2006-01-02", time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01"}

// Parse reads an ISO date or timestamp.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Format renders s with layout, or DisplayLayout when layout is empty.
func Format(s, layout string) string {
	t, ok := Parse(s)
	if !ok {
		return Invalid
	}
	if layout == "" {
		layout = DisplayLayout
	}
	return t.Format(layout)
}

// ForInput renders s as YYYY-MM-DD, or "" when s is invalid.
func ForInput(s string) string {
	t, ok := Parse(s)
	if !ok {
		return ""
	}
	return t.Format("2006-01-02")
}

// Relative renders s relative to now, e.g. "3 months ago".
func Relative(s string, now time.Time) string {
	t, ok := Parse(s)
	if !ok {
		return Invalid
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// IsWithinLastDays reports whether s is at most days days before now,
// counting partial days as whole ones.
func IsWithinLastDays(s string, days int, now time.Time) bool {
	t, ok := Parse(s)
	if !ok {
		return false
	}
	diff := math.Ceil(now.Sub(t).Hours() / 24)
	return diff <= float64(days)
}

// MonthYear renders s as "Jan 2025".
func MonthYear(s string) string {
	return Format(s, "Jan 2006")
}
