package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	serrors "github.com/hbschr/snapshotbackup/errors"
)

// relativeAgoRE matches "<N> <unit>(s)" with an optional trailing "ago",
// e.g. "2 weeks ago", "1 day ago", "6 months".
var relativeAgoRE = regexp.MustCompile(`^(\d+)\s+(minute|hour|day|week|month|year)s?(\s+ago)?$`)

var unitDurations = map[string]time.Duration{
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
}

// ParseRelative resolves a small fixed grammar of human-readable relative
// date expressions into an instant: "now", "today", "yesterday", and
// "N <unit>(s) [ago]" for unit in {minute, hour, day, week, month, year}.
//
// This is intentionally not a natural-language date parser — full relative
// date parsing is treated as an external collaborator. This resolver exists
// so the config loader and CLI have a real, callable implementation to test
// and run against; a production deployment may substitute a fuller resolver
// behind the same signature.
func ParseRelative(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))

	switch s {
	case "now":
		return Now(), nil
	case "today":
		return startOfDay(Now()), nil
	case "yesterday":
		return startOfDay(Now().AddDate(0, 0, -1)), nil
	}

	m := relativeAgoRE.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, serrors.WrapWithDetail(nil, serrors.ErrTimestampParse, "parse relative",
			"could not parse `"+s+"`")
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, serrors.WrapWithDetail(err, serrors.ErrTimestampParse, "parse relative",
			"could not parse `"+s+"`")
	}

	unit := m[2]
	now := Now()
	switch unit {
	case "month":
		return now.AddDate(0, -n, 0), nil
	case "year":
		return now.AddDate(-n, 0, 0), nil
	default:
		return now.Add(-time.Duration(n) * unitDurations[unit]), nil
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
