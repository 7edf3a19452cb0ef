package volume

import (
	"os"

	serrors "github.com/hbschr/snapshotbackup/errors"
)

// Lock is a presence-based mutex over a sync lockfile, scoped to a single
// acquire/release cycle. It is advisory and non-reentrant.
//
// Acquisition is a plain existence check followed by create — not an atomic
// exclusive-create — so two processes racing the check may both see "not
// found" and both create the file. This is a known, accepted race: the
// system's scope is single-host, single-operator scheduled jobs, where
// contention is not expected. A hardened implementation would use
// O_CREAT|O_EXCL instead.
type Lock struct {
	path string
}

// Acquire creates the lockfile, failing with ErrAlreadyLocked if it already
// exists.
func (l *Lock) Acquire() error {
	if _, err := os.Stat(l.path); err == nil {
		return serrors.WrapWithPath(nil, serrors.ErrLocked, "lock", l.path)
	} else if !os.IsNotExist(err) {
		return serrors.Wrap(err, serrors.ErrInternal, "lock")
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return serrors.Wrap(err, serrors.ErrInternal, "lock")
	}
	return f.Close()
}

// Release removes the lockfile. Safe to call even if Acquire never
// succeeded, since an idempotent cleanup must never panic on a missing file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return serrors.Wrap(err, serrors.ErrInternal, "unlock")
	}
	return nil
}

// With runs fn while the lock is held, always releasing it afterward
// regardless of whether fn succeeds, panics, or the caller's context was
// already cancelled.
func (l *Lock) With(fn func() error) error {
	if err := l.Acquire(); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
