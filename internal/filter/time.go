package filter

import (
	"strconv"
	"time"
)

// ParseRelativeTime parses either a relative offset of the form
// "<int>s|m|h|d" (subtracted from now) or an absolute RFC3339 timestamp.
// It returns the resolved time in epoch milliseconds and true, or false if
// the string is empty or unparseable in either form — callers treat false
// as "no constraint from this field", never as an error.
func ParseRelativeTime(s string, now time.Time) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if ms, ok := parseOffset(s, now); ok {
		return ms, true
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func parseOffset(s string, now time.Time) (int64, bool) {
	if len(s) < 2 {
		return 0, false
	}
	unit := s[len(s)-1]
	var scale time.Duration
	switch unit {
	case 's':
		scale = time.Second
	case 'm':
		scale = time.Minute
	case 'h':
		scale = time.Hour
	case 'd':
		scale = 24 * time.Hour
	default:
		return 0, false
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, false
	}
	return now.Add(-time.Duration(n) * scale).UnixMilli(), true
}
