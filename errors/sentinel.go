// Package errors provides predefined sentinel errors for common failure cases.
package errors

// Volume / backup-dir errors.
var (
	// ErrDirNotFound indicates the backup root path is missing.
	ErrDirNotFound = &Error{
		Kind:   ErrBackupDirNotFound,
		Detail: "backup dir not found",
	}

	// ErrNotADirectory indicates the backup root exists but is not a directory.
	ErrNotADirectory = &Error{
		Kind:   ErrBackupDir,
		Detail: "not a directory",
	}

	// ErrNotWritable indicates the backup root is not writable by this process.
	ErrNotWritable = &Error{
		Kind:   ErrBackupDir,
		Detail: "not writable",
	}

	// ErrNotBtrfs indicates the backup root is not on a CoW filesystem.
	ErrNotBtrfs = &Error{
		Kind:   ErrBackupDir,
		Detail: "not a btrfs filesystem",
	}

	// ErrSubvolumeFailed indicates a btrfs subvolume create/delete/snapshot
	// invocation failed.
	ErrSubvolumeFailed = &Error{
		Kind:   ErrSubvolumeOp,
		Detail: "subvolume operation failed",
	}

	// ErrPathEscape indicates a path-confinement violation: a resolved path
	// fell outside the volume's base path.
	ErrPathEscape = &Error{
		Kind:   ErrInternal,
		Detail: "path escapes backup root",
	}
)

// Source / reachability errors.
var (
	// ErrUnreachable indicates the reachability probe on a backup source failed.
	ErrUnreachable = &Error{
		Kind:   ErrSourceNotReachable,
		Detail: "source not reachable",
	}
)

// Subprocess / external-tool errors.
var (
	// ErrBinaryNotFound indicates an external binary could not be found.
	ErrBinaryNotFound = &Error{
		Kind:   ErrCommandNotFound,
		Detail: "command not found",
	}

	// ErrRsyncFailed indicates rsync exited non-zero.
	ErrRsyncFailed = &Error{
		Kind:   ErrSyncFailed,
		Detail: "sync interrupted",
	}

	// ErrFenceFailed indicates the CoW filesystem sync fence failed.
	ErrFenceFailed = &Error{
		Kind:   ErrBtrfsSync,
		Detail: "btrfs sync failed",
	}
)

// Lock errors.
var (
	// ErrAlreadyLocked indicates the sync lockfile was already present.
	ErrAlreadyLocked = &Error{
		Kind:   ErrLocked,
		Detail: "already locked",
	}
)

// Timestamp errors.
var (
	// ErrBadTimestamp indicates a string could not be parsed as a timestamp
	// or relative-date expression.
	ErrBadTimestamp = &Error{
		Kind:   ErrTimestampParse,
		Detail: "could not parse timestamp",
	}
)

// Config errors.
var (
	// ErrMissingSection indicates the requested job section is absent from
	// the configuration file.
	ErrMissingSection = &Error{
		Kind:   ErrInvalidConfig,
		Detail: "no configuration for requested job found",
	}

	// ErrMissingKey indicates a required key is absent from a job section.
	ErrMissingKey = &Error{
		Kind:   ErrInvalidConfig,
		Detail: "missing required key",
	}
)
