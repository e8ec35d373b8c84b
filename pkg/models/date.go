package models

import (
	"strings"
	"time"
)

// dateLayouts are the date encodings the manage endpoints are known to emit.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04",
	"01/02/2006",
}

// ParseDate parses a record date value. ok is false for blank or
// unrecognized values.
func ParseDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LongDate formats s as "January 1, 2025". Unparseable values are returned
// unchanged.
func LongDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return s
	}
	return t.Format("January 2, 2006")
}
