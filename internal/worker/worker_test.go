package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	serrors "github.com/hbschr/snapshotbackup/errors"
	"github.com/hbschr/snapshotbackup/internal/backup"
	"github.com/hbschr/snapshotbackup/internal/shell"
	"github.com/hbschr/snapshotbackup/internal/timestamp"
	"github.com/hbschr/snapshotbackup/internal/volume"
)

// fakeVolume wraps a real *volume.Volume (whose AssurePath/AssureWritable/
// Setup/Lock are plain filesystem operations) and substitutes plain
// directory create/remove for the three methods that would otherwise
// require a real CoW filesystem.
type fakeVolume struct {
	*volume.Volume
	created   []string
	deleted   []string
	snapshots []snapshotCall
}

type snapshotCall struct {
	src, dst string
	readonly bool
}

func newFakeVolume(t *testing.T, path string) *fakeVolume {
	t.Helper()
	v, err := volume.New(path)
	if err != nil {
		t.Fatal(err)
	}
	return &fakeVolume{Volume: v}
}

func (f *fakeVolume) CreateSubvolume(ctx context.Context, name string) error {
	f.created = append(f.created, name)
	return os.MkdirAll(filepath.Join(f.Path, name), 0755)
}

func (f *fakeVolume) DeleteSubvolume(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return os.RemoveAll(filepath.Join(f.Path, name))
}

func (f *fakeVolume) MakeSnapshot(ctx context.Context, src, dst string, readonly bool) error {
	f.snapshots = append(f.snapshots, snapshotCall{src, dst, readonly})
	return os.MkdirAll(filepath.Join(f.Path, dst), 0755)
}

type rsyncCall struct {
	source, target string
	opts           shell.RsyncOptions
}

type fakeSyncer struct {
	reachable  bool
	rsyncErr   error
	rsyncCalls []rsyncCall
}

func (f *fakeSyncer) IsReachable(ctx context.Context, source string) bool {
	return f.reachable
}

func (f *fakeSyncer) Rsync(ctx context.Context, source, target string, opts shell.RsyncOptions) error {
	f.rsyncCalls = append(f.rsyncCalls, rsyncCall{source, target, opts})
	return f.rsyncErr
}

func newTestWorker(t *testing.T, fv *fakeVolume, fs *fakeSyncer) *Worker {
	t.Helper()
	return &Worker{
		vol:      fv,
		sync:     fs,
		basePath: fv.Path,
		syncPath: fv.SyncPath,
		thresholds: Thresholds{
			RetainAllAfter:   timestamp.EarliestTime,
			RetainDailyAfter: timestamp.EarliestTime,
			DecayBefore:      timestamp.EarliestTime,
		},
	}
}

// scenario 2: an unreachable source aborts before any mutation.
func TestBackup_SourceUnreachable(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{reachable: false}
	w := newTestWorker(t, fv, fs)

	err := w.Backup(context.Background(), "/s", BackupOptions{})
	if !serrors.IsKind(err, serrors.ErrSourceNotReachable) {
		t.Fatalf("Backup() kind = %v, want ErrSourceNotReachable", err)
	}
	if len(fs.rsyncCalls) != 0 {
		t.Error("rsync must not be called when source is unreachable")
	}
	if len(fv.created) != 0 || len(fv.snapshots) != 0 {
		t.Error("no mutation must occur when source is unreachable")
	}
	if _, err := os.Stat(filepath.Join(dir, ".sync_lock")); !os.IsNotExist(err) {
		t.Error("no lockfile must be left behind")
	}
}

// scenario 3: an existing lockfile fails the backup before any rsync call.
func TestBackup_AlreadyLocked(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".sync"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".sync_lock"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{reachable: true}
	w := newTestWorker(t, fv, fs)

	err := w.Backup(context.Background(), "/s", BackupOptions{})
	if !serrors.IsKind(err, serrors.ErrLocked) {
		t.Fatalf("Backup() kind = %v, want ErrLocked", err)
	}
	if len(fs.rsyncCalls) != 0 {
		t.Error("rsync must not be called when the lock is already held")
	}
}

// scenario 4: a successful backup on an empty volume creates the sync
// subvolume fresh, then freezes it into a new record, and leaves no
// lockfile behind.
func TestBackup_Success_FreshSyncdir(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{reachable: true}
	w := newTestWorker(t, fv, fs)

	start := timestamp.Now()
	if err := w.Backup(context.Background(), "/s", BackupOptions{}); err != nil {
		t.Fatalf("Backup() = %v, want nil", err)
	}

	if len(fv.created) != 1 || fv.created[0] != ".sync" {
		t.Errorf("created = %v, want single create of .sync", fv.created)
	}
	if len(fs.rsyncCalls) != 1 {
		t.Fatalf("rsync calls = %d, want 1", len(fs.rsyncCalls))
	}
	if fs.rsyncCalls[0].target != fv.SyncPath {
		t.Errorf("rsync target = %q, want %q", fs.rsyncCalls[0].target, fv.SyncPath)
	}
	if len(fv.snapshots) != 1 || fv.snapshots[0].src != ".sync" || !fv.snapshots[0].readonly {
		t.Errorf("snapshots = %+v, want one readonly snapshot of .sync", fv.snapshots)
	}

	records, err := w.GetBackups()
	if err != nil {
		t.Fatalf("GetBackups() = %v, want nil", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].When.Before(start) {
		t.Errorf("record.When = %v, want >= %v", records[0].When, start)
	}
	if _, err := os.Stat(fv.SyncPath); err != nil {
		t.Error("sync subvolume must persist after a successful backup")
	}
	if _, err := os.Stat(filepath.Join(dir, ".sync_lock")); !os.IsNotExist(err) {
		t.Error("lockfile must be absent after a successful backup")
	}
}

// scenario 4 (resume path): a prior record causes the sync subvolume to
// be recovered via a writable snapshot of the latest record rather than
// a fresh subvolume.
func TestBackup_Success_ResumesFromLatest(t *testing.T) {
	dir := t.TempDir()
	prior := "1970-01-01T00:00:00Z"
	if err := os.MkdirAll(filepath.Join(dir, prior), 0755); err != nil {
		t.Fatal(err)
	}
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{reachable: true}
	w := newTestWorker(t, fv, fs)

	if err := w.Backup(context.Background(), "/s", BackupOptions{}); err != nil {
		t.Fatalf("Backup() = %v, want nil", err)
	}

	if len(fv.created) != 0 {
		t.Errorf("created = %v, want no fresh subvolume create", fv.created)
	}
	if len(fv.snapshots) != 2 {
		t.Fatalf("snapshots = %+v, want 2 (recover + freeze)", fv.snapshots)
	}
	if fv.snapshots[0].src != prior || fv.snapshots[0].dst != ".sync" || fv.snapshots[0].readonly {
		t.Errorf("recover snapshot = %+v, want writable snapshot of %q into .sync", fv.snapshots[0], prior)
	}
	if fv.snapshots[1].src != ".sync" || !fv.snapshots[1].readonly {
		t.Errorf("freeze snapshot = %+v, want readonly snapshot of .sync", fv.snapshots[1])
	}

	records, err := w.GetBackups()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
}

// scenario 5: a dry run invokes rsync with --dry-run, creates no
// snapshot, leaves the record count unchanged, and leaves no lockfile.
func TestBackup_DryRun(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{reachable: true}
	w := newTestWorker(t, fv, fs)

	if err := w.Backup(context.Background(), "/s", BackupOptions{DryRun: true}); err != nil {
		t.Fatalf("Backup() = %v, want nil", err)
	}

	if len(fs.rsyncCalls) != 1 || !fs.rsyncCalls[0].opts.DryRun {
		t.Errorf("rsync calls = %+v, want one call with DryRun set", fs.rsyncCalls)
	}
	if len(fv.snapshots) != 0 {
		t.Errorf("snapshots = %v, want none taken on a dry run", fv.snapshots)
	}
	records, err := w.GetBackups()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0 after a dry run", len(records))
	}
	if _, err := os.Stat(filepath.Join(dir, ".sync_lock")); !os.IsNotExist(err) {
		t.Error("lockfile must be absent after a dry run")
	}
}

// rsync failure releases the lock and propagates the error without
// taking a snapshot.
func TestBackup_RsyncFails(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVolume(t, dir)
	wantErr := serrors.New(serrors.ErrSyncFailed, "rsync", "boom")
	fs := &fakeSyncer{reachable: true, rsyncErr: wantErr}
	w := newTestWorker(t, fv, fs)

	err := w.Backup(context.Background(), "/s", BackupOptions{})
	if !serrors.IsKind(err, serrors.ErrSyncFailed) {
		t.Fatalf("Backup() kind = %v, want ErrSyncFailed", err)
	}
	if len(fv.snapshots) != 0 {
		t.Error("no snapshot must be taken when rsync fails")
	}
	if _, err := os.Stat(filepath.Join(dir, ".sync_lock")); !os.IsNotExist(err) {
		t.Error("lockfile must be released even when rsync fails")
	}
}

func TestGetBackups_EmptyVolume(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{}
	w := newTestWorker(t, fv, fs)

	records, err := w.GetBackups()
	if err != nil {
		t.Fatalf("GetBackups() = %v, want nil", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestGetBackups_IgnoresSyncDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".sync"), 0755); err != nil {
		t.Fatal(err)
	}
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{}
	w := newTestWorker(t, fv, fs)

	records, err := w.GetBackups()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0 (sync dir must be excluded)", len(records))
	}
}

func TestGetBackups_MissingBase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nope")
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{}
	w := newTestWorker(t, fv, fs)

	_, err := w.GetBackups()
	if !serrors.IsKind(err, serrors.ErrBackupDirNotFound) {
		t.Errorf("GetBackups() kind = %v, want ErrBackupDirNotFound", err)
	}
}

func TestDecay_DeletesOnlyDecayingApprovedRecords(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1970-01-01T00:00:00Z", "2999-01-01T00:00:00Z"} {
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{}
	w := &Worker{
		vol:      fv,
		sync:     fs,
		basePath: fv.Path,
		syncPath: fv.SyncPath,
		thresholds: Thresholds{
			RetainAllAfter:   timestamp.EarliestTime,
			RetainDailyAfter: timestamp.EarliestTime,
			DecayBefore:      mustParse(t, "1999-01-01T00:00:00Z"),
		},
	}

	if err := w.Decay(context.Background(), nil); err != nil {
		t.Fatalf("Decay() = %v, want nil", err)
	}
	if len(fv.deleted) != 1 || fv.deleted[0] != "1970-01-01T00:00:00Z" {
		t.Errorf("deleted = %v, want only the decaying record", fv.deleted)
	}
}

func TestPrune_RespectsPromptRejection(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1970-01-01T00:00:00Z", "1970-01-02T00:00:00Z", "2999-01-01T00:00:00Z"} {
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{}
	w := newTestWorker(t, fv, fs)

	if err := w.Prune(context.Background(), func(r *backup.Record) bool { return false }); err != nil {
		t.Fatalf("Prune() = %v, want nil", err)
	}
	if len(fv.deleted) != 0 {
		t.Errorf("deleted = %v, want none when prompt rejects everything", fv.deleted)
	}
}

// scenario 6: destroying a non-empty volume with an always-yes prompt
// removes every record, the sync subvolume, and the base directory
// itself; a subsequent enumeration fails with BackupDirNotFound.
func TestDestroy_AlwaysYes(t *testing.T) {
	dir := t.TempDir()
	names := []string{"1970-01-01T00:00:00Z", "1970-01-02T00:00:00Z"}
	for _, name := range names {
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, ".sync"), 0755); err != nil {
		t.Fatal(err)
	}
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{}
	w := newTestWorker(t, fv, fs)

	if err := w.Destroy(context.Background(), nil); err != nil {
		t.Fatalf("Destroy() = %v, want nil", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("base directory must be removed after destroy")
	}

	_, err := w.GetBackups()
	if !serrors.IsKind(err, serrors.ErrBackupDirNotFound) {
		t.Errorf("GetBackups() after destroy kind = %v, want ErrBackupDirNotFound", err)
	}
}

func TestDestroy_RejectedRecordLeavesVolumePartiallyDestroyed(t *testing.T) {
	dir := t.TempDir()
	name := "1970-01-01T00:00:00Z"
	if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
		t.Fatal(err)
	}
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{}
	w := newTestWorker(t, fv, fs)

	err := w.Destroy(context.Background(), func(*backup.Record) bool { return false })
	if err == nil {
		t.Fatal("Destroy() with a rejected record = nil, want the final rmdir to fail")
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Error("a rejected record must be left in place")
	}
}

func TestClean_NoopWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{}
	w := newTestWorker(t, fv, fs)

	if err := w.Clean(context.Background()); err != nil {
		t.Fatalf("Clean() = %v, want nil", err)
	}
	if len(fv.deleted) != 0 {
		t.Error("Clean() on an already-absent sync dir must not call delete")
	}
}

func TestClean_DeletesPresentSyncdir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".sync"), 0755); err != nil {
		t.Fatal(err)
	}
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{}
	w := newTestWorker(t, fv, fs)

	if err := w.Clean(context.Background()); err != nil {
		t.Fatalf("Clean() = %v, want nil", err)
	}
	if len(fv.deleted) != 1 || fv.deleted[0] != ".sync" {
		t.Errorf("deleted = %v, want single delete of .sync", fv.deleted)
	}
}

func TestSetup_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	fv := newFakeVolume(t, dir)
	fs := &fakeSyncer{}
	w := newTestWorker(t, fv, fs)

	if err := w.Setup(); err != nil {
		t.Fatalf("Setup() = %v, want nil", err)
	}
	if err := w.Setup(); err != nil {
		t.Fatalf("second Setup() = %v, want nil", err)
	}
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := timestamp.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}
