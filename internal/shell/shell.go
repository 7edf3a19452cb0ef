// Package shell is the subprocess gateway: the single boundary through which
// the engine invokes external tools (rsync, btrfs, ssh) and translates their
// exit status into the engine's typed error taxonomy.
package shell

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	serrors "github.com/hbschr/snapshotbackup/errors"
	"github.com/hbschr/snapshotbackup/logging"

	"golang.org/x/term"
)

// Run spawns argv, capturing stdout/stderr line-by-line. Every line is
// logged at logging.LevelShell; when showOutput is true, lines are also
// echoed to the calling process's own stdout/stderr — but only when that
// stdout is an interactive terminal, so a cron job's captured log doesn't
// get doubled by raw passthrough lines on top of the shell-level log entries.
// Nil or empty elements in argv are dropped before spawning, so callers can
// build conditional flags inline.
//
// Run waits for the child to exit. It fails with a CommandNotFound error
// when the binary cannot be found, and with a Subprocess error on non-zero
// exit; callers translate Subprocess into a more specific domain error.
func Run(ctx context.Context, showOutput bool, argv ...string) error {
	filtered := make([]string, 0, len(argv))
	for _, a := range argv {
		if a != "" {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == 0 {
		return serrors.New(serrors.ErrInternal, "run", "empty argv")
	}

	logging.ShellContext(ctx, "run", "argv", strings.Join(filtered, " "), "show_output", showOutput)

	cmd := exec.CommandContext(ctx, filtered[0], filtered[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return serrors.Wrap(err, serrors.ErrInternal, "run")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return serrors.Wrap(err, serrors.ErrInternal, "run")
	}

	if err := cmd.Start(); err != nil {
		if isCommandNotFound(err) {
			return serrors.WrapWithDetail(err, serrors.ErrCommandNotFound, "run", filtered[0])
		}
		return serrors.Wrap(err, serrors.ErrInternal, "run")
	}

	echo := showOutput && term.IsTerminal(int(os.Stdout.Fd()))

	var wg sync.WaitGroup
	wg.Add(2)
	go captureLines(ctx, &wg, stdout, os.Stdout, echo)
	go captureLines(ctx, &wg, stderr, os.Stderr, echo)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if isCommandNotFound(err) {
			return serrors.WrapWithDetail(err, serrors.ErrCommandNotFound, "run", filtered[0])
		}
		return serrors.WrapWithDetail(err, serrors.ErrSubprocess, "run", strings.Join(filtered, " "))
	}
	return nil
}

// isCommandNotFound reports whether err indicates the binary could not be
// located, either because LookPath failed before spawn or because the
// kernel itself returned ENOENT on exec.
func isCommandNotFound(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return true
	}
	return os.IsNotExist(err)
}

func captureLines(ctx context.Context, wg *sync.WaitGroup, r io.Reader, w io.Writer, echo bool) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		logging.ShellContext(ctx, line)
		if echo {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}
}
