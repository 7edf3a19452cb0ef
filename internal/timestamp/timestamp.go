// Package timestamp provides the timestamp kernel for the snapshotbackup
// engine: ISO-8601 parsing/formatting and the calendrical predicates the
// retention classifier builds on.
package timestamp

import (
	"time"

	serrors "github.com/hbschr/snapshotbackup/errors"
)

// EarliestTime is the minimum admissible instant. Used as a threshold
// sentinel that forces every is_retain_* predicate to true and is_decay to
// false when no real threshold was supplied.
var EarliestTime = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// Now returns the current instant with microseconds zeroed, converted to the
// local offset.
func Now() time.Time {
	return time.Now().Truncate(time.Second).Local()
}

// Parse strictly parses an ISO-8601 timestamp string.
func Parse(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, serrors.WrapWithDetail(nil, serrors.ErrTimestampParse, "parse",
		"could not parse `"+s+"` as an iso-8601 timestamp")
}

// IsTimestamp reports whether s parses as a valid ISO-8601 timestamp.
func IsTimestamp(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// SameHour reports whether a and b fall in the same calendar hour and are
// strictly less than one hour apart. Precondition: a < b.
func SameHour(a, b time.Time) bool {
	return a.Hour() == b.Hour() && b.Sub(a) < time.Hour
}

// SameDay reports whether a and b fall on the same calendar day and are
// strictly less than 24h apart. Precondition: a < b.
func SameDay(a, b time.Time) bool {
	return a.Day() == b.Day() && b.Sub(a) < 24*time.Hour
}

// SameWeek reports whether a and b fall in the same ISO week and are
// strictly less than 7 days apart. Precondition: a < b.
func SameWeek(a, b time.Time) bool {
	_, weekA := a.ISOWeek()
	_, weekB := b.ISOWeek()
	return weekA == weekB && b.Sub(a) < 7*24*time.Hour
}
