package domain

import (
	"strings"
	"time"
)

// isoLayouts lists accepted ISO-8601 shapes, most specific first.
// Each precision accepts Z, +hh:mm, +hhmm, +hh or no offset; zone-less layouts are interpreted as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04Z07",
	"2006-01-02T15:04",
	"2006-01-02T15Z07:00",
	"2006-01-02T15Z0700",
	"2006-01-02T15Z07",
	"2006-01-02T15",
	"2006-01-02",
}

// ParseTimestamp converts ISO-8601 string into unix milliseconds.
// Params: timestamp text.
// Returns: unix milliseconds or validation error.
func ParseTimestamp(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range isoLayouts {
		parsed, err := time.ParseInLocation(layout, trimmed, time.UTC)
		if err == nil {
			return parsed.UnixMilli(), nil
		}
	}
	return 0, NewValidationError("timestamp", "invalid ISO-8601 timestamp %q", value)
}

// FormatTimestamp renders unix milliseconds as RFC 3339 UTC text.
// Params: unix milliseconds.
// Returns: ISO-8601 string with millisecond precision.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
