package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, a bare date and unix seconds or
// milliseconds. Returns (t, true) if any worked. Results are UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e11 { // ms
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeStrict is ParseTime with an error for empty or malformed input.
func ParseTimeStrict(s string) (time.Time, error) {
	t, ok := ParseTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	return t, nil
}

// ParseOptionalTime returns nil for an empty string and an error for a
// malformed one.
func ParseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseTimeStrict(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
