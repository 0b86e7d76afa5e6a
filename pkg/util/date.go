package util

import (
	"strconv"
	"time"
)

// DateLayout is the calendar-date layout accepted alongside RFC3339.
const DateLayout = "2006-01-02"

// msThreshold separates unix seconds from unix milliseconds. Any epoch value
// above it is read as milliseconds (second-resolution values cross it in 2286).
const msThreshold = 10_000_000_000

// ParseTime tries RFC3339Nano, RFC3339, a plain date and unix seconds or
// milliseconds. The result is always UTC. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return FromEpoch(ts), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// FromEpoch converts unix seconds or unix milliseconds to a UTC time.
func FromEpoch(ts int64) time.Time {
	if ts > msThreshold || ts < -msThreshold {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// FormatDate renders t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// FormatMillis renders t as unix milliseconds.
func FormatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
