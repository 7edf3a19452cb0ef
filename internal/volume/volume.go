// Package volume implements the path-confined filesystem adapter over a
// backup root: subvolume create/delete/snapshot, CoW filesystem probing, and
// the scoped sync lockfile.
package volume

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	serrors "github.com/hbschr/snapshotbackup/errors"
	"github.com/hbschr/snapshotbackup/internal/shell"
)

const (
	// syncDirName is the fixed hidden name of the writable staging subvolume.
	syncDirName = ".sync"
	// lockFileName is the fixed hidden name of the sync lockfile.
	lockFileName = ".sync_lock"
)

// Volume owns one absolute base path plus its two derived names (sync
// subdir, sync lockfile) and confines every path operation inside that base.
type Volume struct {
	// Path is the absolute backup root.
	Path string
	// SyncPath is the absolute path to this volume's sync subvolume.
	SyncPath string
}

// New returns a Volume rooted at path. It performs no filesystem checks;
// callers that need guarantees about the path call AssurePath/AssureWritable/
// AssureBtrfs explicitly.
func New(path string) (*Volume, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, serrors.Wrap(err, serrors.ErrInternal, "abs")
	}
	v := &Volume{Path: abs}
	syncPath, err := v.pathJoin(syncDirName)
	if err != nil {
		return nil, err
	}
	v.SyncPath = syncPath
	return v, nil
}

// pathJoin resolves sub relative to this volume's base path and rejects any
// result that escapes it. This is the path-confinement guard every
// subprocess invocation passes through — defense against `..` or
// absolute-path injection from job configuration.
func (v *Volume) pathJoin(sub string) (string, error) {
	joined := filepath.Clean(filepath.Join(v.Path, sub))
	if filepath.IsAbs(sub) {
		joined = filepath.Clean(sub)
	}
	if joined != v.Path && !strings.HasPrefix(joined, v.Path+string(os.PathSeparator)) {
		return "", serrors.WrapWithDetail(serrors.ErrPathEscape, serrors.ErrInternal, "path join",
			"join `"+v.Path+"` with `"+sub+"`")
	}
	return joined, nil
}

func (v *Volume) lockfilePath() string {
	return filepath.Join(v.Path, lockFileName)
}

// AssurePath fails with ErrDirNotFound if the base path is missing, or
// ErrNotADirectory if it exists but isn't a directory.
func (v *Volume) AssurePath() error {
	info, err := os.Stat(v.Path)
	if os.IsNotExist(err) {
		return serrors.WrapWithPath(err, serrors.ErrBackupDirNotFound, "assure path", v.Path)
	}
	if err != nil {
		return serrors.Wrap(err, serrors.ErrInternal, "assure path")
	}
	if !info.IsDir() {
		return serrors.WrapWithPath(nil, serrors.ErrBackupDir, "assure path", v.Path)
	}
	return nil
}

// AssureWritable calls AssurePath, then fails with ErrNotWritable on missing
// write permission.
func (v *Volume) AssureWritable() error {
	if err := v.AssurePath(); err != nil {
		return err
	}
	if syscall.Access(v.Path, 2 /* W_OK */) != nil {
		return serrors.WrapWithPath(nil, serrors.ErrBackupDir, "assure writable", v.Path)
	}
	return nil
}

// AssureBtrfs fails with ErrNotBtrfs if the CoW filesystem probe returns
// false. No operation of this package or of the Worker calls it; subvolume
// operations run without a prior filesystem check.
func (v *Volume) AssureBtrfs(ctx context.Context) error {
	if !shell.IsBtrfs(ctx, v.Path) {
		return serrors.WrapWithPath(nil, serrors.ErrBackupDir, "assure btrfs", v.Path)
	}
	return nil
}

// Setup creates the base directory recursively. Idempotent.
func (v *Volume) Setup() error {
	if err := os.MkdirAll(v.Path, 0755); err != nil {
		return serrors.Wrap(err, serrors.ErrInternal, "setup")
	}
	return nil
}

// CreateSubvolume creates a new subvolume named name inside this volume.
func (v *Volume) CreateSubvolume(ctx context.Context, name string) error {
	path, err := v.pathJoin(name)
	if err != nil {
		return err
	}
	return shell.CreateSubvolume(ctx, path)
}

// DeleteSubvolume deletes the subvolume named name inside this volume.
func (v *Volume) DeleteSubvolume(ctx context.Context, name string) error {
	path, err := v.pathJoin(name)
	if err != nil {
		return err
	}
	return shell.DeleteSubvolume(ctx, path)
}

// MakeSnapshot snapshots src into dst, both relative to this volume.
func (v *Volume) MakeSnapshot(ctx context.Context, src, dst string, readonly bool) error {
	srcPath, err := v.pathJoin(src)
	if err != nil {
		return err
	}
	dstPath, err := v.pathJoin(dst)
	if err != nil {
		return err
	}
	return shell.MakeSnapshot(ctx, srcPath, dstPath, readonly)
}

// Lock returns a scoped guard over this volume's sync lockfile.
func (v *Volume) Lock() *Lock {
	return &Lock{path: v.lockfilePath()}
}
