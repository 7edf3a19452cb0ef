package config

import (
	"os"
	"path/filepath"
	"testing"

	serrors "github.com/hbschr/snapshotbackup/errors"
	"github.com/hbschr/snapshotbackup/internal/timestamp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "snapshotbackup.ini")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

func TestLoad_MinimalJob(t *testing.T) {
	p := writeConfig(t, `
[photos]
source = /home/user/photos
backups = /mnt/backup/photos
`)

	job, err := Load(p, "photos")
	require.NoError(t, err)
	assert.Equal(t, "photos", job.Name)
	assert.Equal(t, "/home/user/photos", job.Source)
	assert.Equal(t, "/mnt/backup/photos", job.Backups)
	assert.Empty(t, job.Ignore)
	assert.False(t, job.AutoDecay)
	assert.False(t, job.AutoPrune)
	assert.True(t, job.DecayBefore.Equal(timestamp.EarliestTime))
	assert.True(t, job.SilentFailThreshold.Equal(timestamp.EarliestTime))
}

func TestLoad_MissingSection(t *testing.T) {
	p := writeConfig(t, `
[photos]
source = /home/user/photos
backups = /mnt/backup/photos
`)

	_, err := Load(p, "videos")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.ErrInvalidConfig))
}

func TestLoad_MissingSourceKey(t *testing.T) {
	p := writeConfig(t, `
[photos]
backups = /mnt/backup/photos
`)

	_, err := Load(p, "photos")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.ErrInvalidConfig))
}

func TestLoad_MissingBackupsKey(t *testing.T) {
	p := writeConfig(t, `
[photos]
source = /home/user/photos
`)

	_, err := Load(p, "photos")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.ErrInvalidConfig))
}

func TestLoad_FullJob(t *testing.T) {
	p := writeConfig(t, `
[photos]
source = /home/user/photos
backups = /mnt/backup/photos
ignore = *.tmp, .cache
autodecay = true
autoprune = True
retain_all = 2 days
retain_daily = 2 months
decay = 6 months
silent_fail_threshold = 1 week
notify_remote = user@example.com
`)

	job, err := Load(p, "photos")
	require.NoError(t, err)
	assert.Equal(t, []string{"*.tmp", ".cache"}, job.Ignore)
	assert.True(t, job.AutoDecay)
	assert.True(t, job.AutoPrune)
	assert.Equal(t, "user@example.com", job.NotifyRemote)
	assert.False(t, job.DecayBefore.Equal(timestamp.EarliestTime))
	assert.False(t, job.SilentFailThreshold.Equal(timestamp.EarliestTime))
	assert.True(t, job.RetainAllAfter.Before(timestamp.Now()))
	assert.True(t, job.RetainDailyAfter.Before(timestamp.Now()))
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, `
[photos]
source = /home/user/photos
backups = /mnt/backup/photos
`)

	job, err := Load(p, "photos")
	require.NoError(t, err)
	// defaults of "1 day" / "1 month" must resolve without error.
	assert.True(t, job.RetainAllAfter.Before(timestamp.Now()))
	assert.True(t, job.RetainDailyAfter.Before(timestamp.Now()))
}

func TestLoad_InvalidRelativeDate(t *testing.T) {
	p := writeConfig(t, `
[photos]
source = /home/user/photos
backups = /mnt/backup/photos
retain_all = sometime soon
`)

	_, err := Load(p, "photos")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.ErrInvalidConfig))
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"), "photos")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.ErrInvalidConfig))
}

func TestSplitIgnore(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitIgnore("a, b\nc"))
	assert.Empty(t, splitIgnore(""))
	assert.Equal(t, []string{"a"}, splitIgnore(" a , , "))
}

func TestIsTruthy(t *testing.T) {
	assert.True(t, isTruthy("true"))
	assert.True(t, isTruthy("True"))
	assert.True(t, isTruthy("1"))
	assert.False(t, isTruthy("false"))
	assert.False(t, isTruthy(""))
	assert.False(t, isTruthy("yes"))
}
