// Package backup implements the Backup record: an immutable descriptor of
// one completed snapshot, computing retention booleans against a set of
// thresholds and its immediate predecessor in the ordered snapshot
// enumeration.
package backup

import (
	"path/filepath"
	"time"

	"github.com/hbschr/snapshotbackup/internal/timestamp"
)

// Record is a value object reconstructed from the filesystem on every
// enumeration; it carries no mutation methods of its own.
type Record struct {
	// Name is the ISO-8601 timestamp string and on-disk directory name.
	Name string
	// Path is the absolute path to this snapshot's subvolume.
	Path string
	// When is the parsed, timezone-aware completion instant.
	When time.Time

	// IsLast is true iff this record is the chronologically latest in its
	// enumeration.
	IsLast bool
	// IsDaily is true iff no preceding record exists in the same calendar
	// day (and within 24h).
	IsDaily bool
	// IsWeekly is true iff no preceding record exists in the same ISO week
	// (and within 7d).
	IsWeekly bool
	// IsRetainAll is true iff When is at or after the retain-all threshold.
	IsRetainAll bool
	// IsRetainDaily is true iff When is at or after the retain-daily
	// threshold.
	IsRetainDaily bool
	// Decay is true iff When is before the decay threshold and this is not
	// the last record.
	Decay bool
	// Prune is true iff the retention policy does not retain this record.
	Prune bool
}

// New builds a Record for name (an ISO-8601 timestamp) located under
// basePath, classified against the given thresholds and optional
// predecessor. Pass timestamp.EarliestTime for any threshold that should
// have no effect (forces the corresponding is_retain_* to true, decay to
// false).
func New(name, basePath string, retainAllAfter, retainDailyAfter, decayBefore time.Time, previous *Record, isLast bool) (*Record, error) {
	when, err := timestamp.Parse(name)
	if err != nil {
		return nil, err
	}

	r := &Record{
		Name:          name,
		Path:          filepath.Join(basePath, name),
		When:          when,
		IsLast:        isLast,
		IsRetainAll:   !when.Before(retainAllAfter),
		IsRetainDaily: !when.Before(retainDailyAfter),
		Decay:         when.Before(decayBefore) && !isLast,
	}

	if previous == nil {
		r.IsDaily = true
		r.IsWeekly = true
	} else {
		r.IsDaily = !timestamp.SameDay(previous.When, when)
		r.IsWeekly = !timestamp.SameWeek(previous.When, when)
	}

	r.Prune = !r.retain()
	return r, nil
}

// retain reports whether the retention policy keeps this record.
func (r *Record) retain() bool {
	if r.IsLast {
		return true
	}
	if r.IsRetainAll {
		return true
	}
	if r.IsRetainDaily {
		return r.IsDaily
	}
	return r.IsWeekly
}
