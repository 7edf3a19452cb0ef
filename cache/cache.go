// Package cache persists per-job "last successful run" timestamps across
// process invocations, so the CLI can warn when a job has gone silent for
// longer than its configured threshold.
package cache

import (
	"os"
	"path/filepath"
	"time"

	serrors "github.com/hbschr/snapshotbackup/errors"
	"github.com/hbschr/snapshotbackup/internal/timestamp"

	"gopkg.in/ini.v1"
)

const (
	cacheDirName  = "snapshotbackup"
	cacheFileName = "statistic.ini"
	lastRunKey    = "last_run"
)

// path returns the statistic file's location under the user's cache
// directory, creating no directories or files itself.
func path() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", serrors.Wrap(err, serrors.ErrInternal, "locate cache dir")
	}
	return filepath.Join(dir, cacheDirName, cacheFileName), nil
}

// load reads the statistic file, returning an empty INI document if it
// does not yet exist.
func load() (*ini.File, string, error) {
	p, err := path()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return ini.Empty(), p, nil
	}
	cfg, err := ini.Load(p)
	if err != nil {
		return nil, "", serrors.WrapWithPath(err, serrors.ErrInternal, "load cache", p)
	}
	return cfg, p, nil
}

// GetLastRun returns the timestamp of the last successful run recorded for
// jobName, and false if no such record exists or it cannot be parsed.
func GetLastRun(jobName string) (time.Time, bool) {
	cfg, _, err := load()
	if err != nil {
		return time.Time{}, false
	}
	if !cfg.HasSection(jobName) {
		return time.Time{}, false
	}
	raw := cfg.Section(jobName).Key(lastRunKey).String()
	if raw == "" {
		return time.Time{}, false
	}
	when, err := timestamp.Parse(raw)
	if err != nil {
		return time.Time{}, false
	}
	return when, true
}

// SetLastRun records when as the last successful run for jobName,
// creating the cache directory and file if necessary.
func SetLastRun(jobName string, when time.Time) error {
	cfg, p, err := load()
	if err != nil {
		return err
	}
	cfg.Section(jobName).Key(lastRunKey).SetValue(when.Format(time.RFC3339))

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return serrors.WrapWithPath(err, serrors.ErrInternal, "create cache dir", filepath.Dir(p))
	}
	if err := cfg.SaveTo(p); err != nil {
		return serrors.WrapWithPath(err, serrors.ErrInternal, "save cache", p)
	}
	return nil
}
