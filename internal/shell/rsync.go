package shell

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	serrors "github.com/hbschr/snapshotbackup/errors"
)

// rsyncExitMessages maps rsync's documented exit codes to a human-readable
// cause, used to build SyncFailed errors with an actionable message.
var rsyncExitMessages = map[int]string{
	1:  "syntax or usage error",
	2:  "protocol incompatibility",
	3:  "errors selecting input/output files, dirs",
	4:  "requested action not supported",
	5:  "error starting client-server protocol",
	6:  "daemon unable to append to log-file",
	10: "error in socket I/O",
	11: "error in file I/O",
	12: "error in rsync protocol data stream",
	13: "errors with program diagnostics",
	14: "error in IPC code",
	20: "received SIGUSR1 or SIGINT",
	21: "some error returned by waitpid()",
	22: "error allocating core memory buffers",
	23: "partial transfer due to error",
	24: "partial transfer due to vanished source files",
	25: "the --max-delete limit stopped deletions",
	30: "timeout in data send/receive",
	35: "timeout waiting for daemon connection",
}

// RsyncOptions configures an rsync invocation.
type RsyncOptions struct {
	Excludes []string
	Checksum bool
	DryRun   bool
	Progress bool
}

// Rsync synchronizes source into target with `-azv --sparse --delete
// --delete-excluded`, one --exclude per entry, optional --checksum and
// --dry-run. On success it fences target with a btrfs sync. On non-zero
// exit, it returns a SyncFailed error whose message is looked up from the
// rsync exit-code table.
func Rsync(ctx context.Context, source, target string, opts RsyncOptions) error {
	argv := []string{
		"rsync",
		"--human-readable", "--itemize-changes", "--stats",
		"-a", "-z", "-v",
		"--sparse", "--delete", "--delete-excluded",
	}
	for _, e := range opts.Excludes {
		if e != "" {
			argv = append(argv, "--exclude="+e)
		}
	}
	if opts.Checksum {
		argv = append(argv, "--checksum")
	}
	if opts.DryRun {
		argv = append(argv, "--dry-run")
	}
	argv = append(argv, strings.TrimRight(source, "/")+"/", target)

	err := Run(ctx, opts.Progress, argv...)
	if err == nil {
		return BtrfsSync(ctx, target)
	}

	if serrors.IsKind(err, serrors.ErrCommandNotFound) {
		return err
	}

	msg := "sync interrupted"
	if code, ok := exitCode(err); ok {
		if known, ok := rsyncExitMessages[code]; ok {
			msg = known
		}
	}
	return &serrors.Error{
		Op:     "rsync",
		Path:   target,
		Kind:   serrors.ErrSyncFailed,
		Detail: msg,
		Err:    err,
	}
}

// IsReachable probes whether source can be read. Local paths are probed
// with `ls`; `user@host:path` sources are probed over SSH.
func IsReachable(ctx context.Context, source string) bool {
	if user, host, path, ok := splitRemote(source); ok {
		return Run(ctx, false, "ssh", fmt.Sprintf("%s@%s", user, host), "ls", path) == nil
	}
	return Run(ctx, false, "ls", source) == nil
}

func splitRemote(source string) (user, host, path string, ok bool) {
	at := strings.Index(source, "@")
	colon := strings.Index(source, ":")
	if at < 0 || colon < 0 || colon < at {
		return "", "", "", false
	}
	return source[:at], source[at+1 : colon], source[colon+1:], true
}

func exitCode(err error) (int, bool) {
	var serr *serrors.Error
	if !serrors.As(err, &serr) {
		return 0, false
	}
	var exitErr *exec.ExitError
	if serrors.As(serr.Err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}
