// Package config loads per-job configuration from an INI file: source and
// destination paths, rsync exclude patterns, and the relative-date
// retention thresholds a Worker is constructed from.
package config

import (
	"strings"
	"time"

	serrors "github.com/hbschr/snapshotbackup/errors"
	"github.com/hbschr/snapshotbackup/internal/timestamp"

	"gopkg.in/ini.v1"
)

var defaults = map[string]string{
	"retain_all":   "1 day",
	"retain_daily": "1 month",
	"decay":        "",
	"ignore":       "",
}

// Job holds one job's resolved configuration: the fields a Worker and the
// CLI front-end need to run a backup.
type Job struct {
	// Name is the INI section name, also used as the run-cache key and
	// default notification title.
	Name string

	Source  string
	Backups string
	Ignore  []string

	RetainAllAfter   time.Time
	RetainDailyAfter time.Time
	DecayBefore      time.Time

	AutoDecay bool
	AutoPrune bool

	SilentFailThreshold time.Time
	NotifyRemote        string
}

// Load parses path and returns the resolved Job for section.
func Load(path, section string) (*Job, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, serrors.WrapWithPath(err, serrors.ErrInvalidConfig, "load config", path)
	}

	if !cfg.HasSection(section) {
		return nil, serrors.WrapWithDetail(nil, serrors.ErrInvalidConfig, "load config",
			"no configuration for `"+section+"` found")
	}
	sec := cfg.Section(section)

	source := sec.Key("source").String()
	if source == "" {
		return nil, missingKey(section, "source")
	}
	backups := sec.Key("backups").String()
	if backups == "" {
		return nil, missingKey(section, "backups")
	}

	job := &Job{
		Name:         section,
		Source:       source,
		Backups:      backups,
		Ignore:       splitIgnore(sec.Key("ignore").MustString(defaults["ignore"])),
		AutoDecay:    isTruthy(sec.Key("autodecay").String()),
		AutoPrune:    isTruthy(sec.Key("autoprune").String()),
		NotifyRemote: sec.Key("notify_remote").String(),
	}

	retainAll := sec.Key("retain_all").MustString(defaults["retain_all"])
	job.RetainAllAfter, err = resolveRelative(section, "retain_all", retainAll)
	if err != nil {
		return nil, err
	}

	retainDaily := sec.Key("retain_daily").MustString(defaults["retain_daily"])
	job.RetainDailyAfter, err = resolveRelative(section, "retain_daily", retainDaily)
	if err != nil {
		return nil, err
	}

	decay := sec.Key("decay").MustString(defaults["decay"])
	if decay == "" {
		job.DecayBefore = timestamp.EarliestTime
	} else {
		job.DecayBefore, err = resolveRelative(section, "decay", decay)
		if err != nil {
			return nil, err
		}
	}

	silentFail := sec.Key("silent_fail_threshold").String()
	if silentFail == "" {
		job.SilentFailThreshold = timestamp.EarliestTime
	} else {
		job.SilentFailThreshold, err = resolveRelative(section, "silent_fail_threshold", silentFail)
		if err != nil {
			return nil, err
		}
	}

	return job, nil
}

func resolveRelative(section, key, value string) (time.Time, error) {
	when, err := timestamp.ParseRelative(value)
	if err != nil {
		return time.Time{}, serrors.WrapWithDetail(err, serrors.ErrInvalidConfig, "resolve "+key,
			"`"+section+"."+key+"` = `"+value+"`")
	}
	return when, nil
}

func missingKey(section, key string) error {
	return serrors.WrapWithDetail(nil, serrors.ErrInvalidConfig, "load config",
		"`"+section+"` is missing required key `"+key+"`")
}

// splitIgnore turns a newline- or comma-separated ignore value into
// individual rsync exclude patterns.
func splitIgnore(raw string) []string {
	raw = strings.ReplaceAll(raw, ",", "\n")
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// isTruthy reports whether s is one of the accepted truthy spellings.
func isTruthy(s string) bool {
	switch s {
	case "true", "True", "1":
		return true
	default:
		return false
	}
}
