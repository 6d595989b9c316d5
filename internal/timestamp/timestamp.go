// Package timestamp formats and parses the sortable timestamps used for
// log filenames and persisted runtime state.
package timestamp

import (
	"strings"
	"time"
)

// DefaultLayout produces values like 20240301_154500.123456, which sort
// lexicographically in chronological order.
const DefaultLayout = "20060102_150405.000000"

// Format renders t with the given layout, falling back to DefaultLayout
// when layout is empty.
func Format(t time.Time, layout string) string {
	if layout == "" {
		layout = DefaultLayout
	}
	return t.Format(layout)
}

// Parse reads a timestamp previously produced by Format. A trailing
// .log extension is tolerated so log filenames can be parsed directly.
func Parse(s, layout string) (time.Time, error) {
	if layout == "" {
		layout = DefaultLayout
	}
	s = strings.TrimSuffix(s, ".log")
	return time.ParseInLocation(layout, s, time.Local)
}
