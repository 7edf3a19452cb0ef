// Package worker orchestrates the full backup lifecycle: sync-dir
// assertion, sync transfer, freeze, enumeration, classification, and
// decay/prune/destroy against one volume.
package worker

import (
	"context"
	"os"
	"sort"
	"time"

	serrors "github.com/hbschr/snapshotbackup/errors"
	"github.com/hbschr/snapshotbackup/internal/backup"
	"github.com/hbschr/snapshotbackup/internal/shell"
	"github.com/hbschr/snapshotbackup/internal/timestamp"
	"github.com/hbschr/snapshotbackup/internal/volume"
	"github.com/hbschr/snapshotbackup/logging"
)

// Thresholds bundles the three retention instants a Worker classifies
// records against. The zero value (timestamp.EarliestTime for all three)
// retains every snapshot and decays none.
type Thresholds struct {
	RetainAllAfter   time.Time
	RetainDailyAfter time.Time
	DecayBefore      time.Time
}

// volumeAPI is the subset of *volume.Volume a Worker drives. Defining it
// here, at the consumer, lets tests substitute a fake that doesn't
// require a real CoW filesystem.
type volumeAPI interface {
	Setup() error
	AssurePath() error
	AssureWritable() error
	CreateSubvolume(ctx context.Context, name string) error
	DeleteSubvolume(ctx context.Context, name string) error
	MakeSnapshot(ctx context.Context, src, dst string, readonly bool) error
	Lock() *volume.Lock
}

// syncer is the subset of package shell a Worker uses to transfer file
// trees. Abstracted for the same reason as volumeAPI: tests shouldn't
// need a real rsync binary on PATH.
type syncer interface {
	IsReachable(ctx context.Context, source string) bool
	Rsync(ctx context.Context, source, target string, opts shell.RsyncOptions) error
}

type shellSyncer struct{}

func (shellSyncer) IsReachable(ctx context.Context, source string) bool {
	return shell.IsReachable(ctx, source)
}

func (shellSyncer) Rsync(ctx context.Context, source, target string, opts shell.RsyncOptions) error {
	return shell.Rsync(ctx, source, target, opts)
}

// Worker owns one backup volume and its retention thresholds.
type Worker struct {
	vol        volumeAPI
	sync       syncer
	basePath   string
	syncPath   string
	thresholds Thresholds
}

// New constructs a Worker rooted at path. Thresholds left as the zero
// value default to timestamp.EarliestTime, the sentinel that retains
// everything and decays nothing.
func New(path string, thresholds Thresholds) (*Worker, error) {
	v, err := volume.New(path)
	if err != nil {
		return nil, err
	}
	if thresholds.RetainAllAfter.IsZero() {
		thresholds.RetainAllAfter = timestamp.EarliestTime
	}
	if thresholds.RetainDailyAfter.IsZero() {
		thresholds.RetainDailyAfter = timestamp.EarliestTime
	}
	if thresholds.DecayBefore.IsZero() {
		thresholds.DecayBefore = timestamp.EarliestTime
	}
	return &Worker{
		vol:        v,
		sync:       shellSyncer{},
		basePath:   v.Path,
		syncPath:   v.SyncPath,
		thresholds: thresholds,
	}, nil
}

// Setup creates the base directory recursively. Idempotent.
func (w *Worker) Setup() error {
	return w.vol.Setup()
}

// BackupOptions configures a single backup invocation.
type BackupOptions struct {
	Excludes  []string
	AutoDecay bool
	AutoPrune bool
	Checksum  bool
	DryRun    bool
	Progress  bool
}

// Prompt decides, given a record, whether a caller wants it acted upon
// (deleted for decay/prune/destroy). A nil Prompt is treated as
// always-yes.
type Prompt func(r *backup.Record) bool

func alwaysYes(*backup.Record) bool { return true }

// Backup runs the full sequence: reachability check, sync-dir
// assertion, lock acquisition, rsync, freeze into a new read-only
// snapshot, lock release, then optional autodecay/autoprune.
func (w *Worker) Backup(ctx context.Context, source string, opts BackupOptions) error {
	log := logging.FromContext(ctx)

	if !w.sync.IsReachable(ctx, source) {
		return serrors.WrapWithPath(nil, serrors.ErrSourceNotReachable, "backup", source)
	}

	if err := w.assertSyncDir(ctx); err != nil {
		return err
	}

	lockErr := w.vol.Lock().With(func() error {
		if err := w.sync.Rsync(ctx, source, w.syncPath, shell.RsyncOptions{
			Excludes: opts.Excludes,
			Checksum: opts.Checksum,
			DryRun:   opts.DryRun,
			Progress: opts.Progress,
		}); err != nil {
			return err
		}
		if opts.DryRun {
			return nil
		}
		name := timestamp.Now().Format(time.RFC3339)
		return w.vol.MakeSnapshot(ctx, ".sync", name, true)
	})
	if lockErr != nil {
		return lockErr
	}

	if opts.AutoDecay {
		if err := w.Decay(ctx, alwaysYes); err != nil {
			log.WarnContext(ctx, "autodecay failed", "error", err)
		}
	}
	if opts.AutoPrune {
		if err := w.Prune(ctx, alwaysYes); err != nil {
			log.WarnContext(ctx, "autoprune failed", "error", err)
		}
	}

	return nil
}

// assertSyncDir ensures the sync subvolume exists and is writable,
// resuming incrementally from the latest snapshot when one exists.
func (w *Worker) assertSyncDir(ctx context.Context) error {
	if err := w.vol.AssureWritable(); err != nil {
		return err
	}

	if _, err := os.Stat(w.syncPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return serrors.Wrap(err, serrors.ErrInternal, "assert syncdir")
	}

	last, err := w.GetLast(ctx)
	if err != nil {
		return err
	}
	if last == nil {
		return w.vol.CreateSubvolume(ctx, ".sync")
	}
	return w.vol.MakeSnapshot(ctx, last.Name, ".sync", false)
}

// GetBackups enumerates the base directory one level deep, keeping only
// entries whose name is a valid ISO-8601 timestamp, sorted ascending by
// name (equivalently, chronologically). The last entry is marked
// is_last.
func (w *Worker) GetBackups() ([]*backup.Record, error) {
	if err := w.vol.AssurePath(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(w.basePath)
	if err != nil {
		return nil, serrors.Wrap(err, serrors.ErrInternal, "get backups")
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if timestamp.IsTimestamp(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	records := make([]*backup.Record, 0, len(names))
	var prev *backup.Record
	for i, name := range names {
		isLast := i == len(names)-1
		r, err := backup.New(name, w.basePath, w.thresholds.RetainAllAfter, w.thresholds.RetainDailyAfter, w.thresholds.DecayBefore, prev, isLast)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
		prev = r
	}
	return records, nil
}

// GetLast returns the chronologically latest record, or nil if none
// exist.
func (w *Worker) GetLast(ctx context.Context) (*backup.Record, error) {
	records, err := w.GetBackups()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[len(records)-1], nil
}

// List returns the full classification for presentation by the caller.
func (w *Worker) List() ([]*backup.Record, error) {
	return w.GetBackups()
}

// Decay deletes every record with decay=true for which prompt returns
// true. A nil prompt defaults to always-yes.
func (w *Worker) Decay(ctx context.Context, prompt Prompt) error {
	return w.deleteMatching(ctx, prompt, func(r *backup.Record) bool { return r.Decay })
}

// Prune deletes every record with prune=true for which prompt returns
// true. A nil prompt defaults to always-yes.
func (w *Worker) Prune(ctx context.Context, prompt Prompt) error {
	return w.deleteMatching(ctx, prompt, func(r *backup.Record) bool { return r.Prune })
}

func (w *Worker) deleteMatching(ctx context.Context, prompt Prompt, match func(*backup.Record) bool) error {
	if prompt == nil {
		prompt = alwaysYes
	}
	if err := w.vol.AssureWritable(); err != nil {
		return err
	}
	records, err := w.GetBackups()
	if err != nil {
		return err
	}
	for _, r := range records {
		if !match(r) {
			continue
		}
		if !prompt(r) {
			continue
		}
		if err := w.vol.DeleteSubvolume(ctx, r.Name); err != nil {
			return err
		}
	}
	return nil
}

// Destroy deletes the sync subvolume (if present), then every record
// for which prompt returns true, then removes the base directory. If
// prompt declines a record, that record is left in place and the final
// rmdir fails, leaving the volume partially destroyed.
func (w *Worker) Destroy(ctx context.Context, prompt Prompt) error {
	if prompt == nil {
		prompt = alwaysYes
	}
	log := logging.FromContext(ctx)
	log.WarnContext(ctx, "destroying backup volume", "path", w.basePath)

	if err := w.Clean(ctx); err != nil {
		return err
	}

	records, err := w.GetBackups()
	if err != nil {
		return err
	}
	for _, r := range records {
		if !prompt(r) {
			continue
		}
		if err := w.vol.DeleteSubvolume(ctx, r.Name); err != nil {
			return err
		}
	}

	if err := os.Remove(w.basePath); err != nil {
		return serrors.WrapWithPath(err, serrors.ErrBackupDir, "destroy", w.basePath)
	}
	return nil
}

// Clean deletes the sync subvolume if present; a no-op otherwise.
func (w *Worker) Clean(ctx context.Context) error {
	if err := w.vol.AssureWritable(); err != nil {
		return err
	}
	if _, err := os.Stat(w.syncPath); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return serrors.Wrap(err, serrors.ErrInternal, "clean")
	}
	return w.vol.DeleteSubvolume(ctx, ".sync")
}
