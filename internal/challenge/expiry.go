package challenge

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is how issued_at and expires_at are written.
const TimestampLayout = "2006-01-02T15:04:05Z"

// zone-less layouts accepted on input; they are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// FormatTimestamp renders t in UTC with an explicit Z suffix.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO-8601 timestamp and normalizes it to UTC.
// A timestamp without a zone is taken as UTC, never local time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// IsExpired reports whether now is strictly after expires_at.
func IsExpired(c *Challenge, now time.Time) (bool, error) {
	expires, err := ParseTimestamp(c.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("expires_at: %w", err)
	}
	return now.UTC().After(expires), nil
}
