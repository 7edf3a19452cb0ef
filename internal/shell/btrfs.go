package shell

import (
	"context"
	"path/filepath"

	serrors "github.com/hbschr/snapshotbackup/errors"
)

// CreateSubvolume creates a new btrfs subvolume at path, then fences the
// mutation with a filesystem sync.
func CreateSubvolume(ctx context.Context, path string) error {
	if err := Run(ctx, false, "btrfs", "subvolume", "create", path); err != nil {
		return serrors.WrapWithPath(err, serrors.ErrSubvolumeOp, "create subvolume", path)
	}
	return BtrfsSync(ctx, path)
}

// DeleteSubvolume deletes the btrfs subvolume at path, then fences the
// mutation with a filesystem sync on the parent directory.
func DeleteSubvolume(ctx context.Context, path string) error {
	if err := Run(ctx, false, "sudo", "btrfs", "subvolume", "delete", path); err != nil {
		return serrors.WrapWithPath(err, serrors.ErrSubvolumeOp, "delete subvolume", path)
	}
	return BtrfsSync(ctx, filepath.Dir(path))
}

// MakeSnapshot creates a snapshot of src at dst, readonly unless writable is
// requested, then fences the mutation with a filesystem sync.
func MakeSnapshot(ctx context.Context, src, dst string, readonly bool) error {
	argv := []string{"btrfs", "subvolume", "snapshot"}
	if readonly {
		argv = append(argv, "-r")
	}
	argv = append(argv, src, dst)
	if err := Run(ctx, false, argv...); err != nil {
		return serrors.WrapWithPath(err, serrors.ErrSubvolumeOp, "make snapshot", dst)
	}
	return BtrfsSync(ctx, dst)
}

// IsBtrfs reports whether path resides on a btrfs filesystem. A probe
// failure yields false, not an error.
func IsBtrfs(ctx context.Context, path string) bool {
	return Run(ctx, false, "btrfs", "filesystem", "df", path) == nil
}

// BtrfsSync forces a flush of the btrfs filesystem's metadata at path. This
// fence is mandatory after every subvolume mutation: omitting it risks
// racing a subsequent operation against metadata that hasn't landed.
func BtrfsSync(ctx context.Context, path string) error {
	if err := Run(ctx, false, "btrfs", "filesystem", "sync", path); err != nil {
		return serrors.WrapWithPath(err, serrors.ErrBtrfsSync, "btrfs sync", path)
	}
	return nil
}
