// Package notify sends desktop notifications about backup outcomes via
// libnotify, optionally relayed to a remote host over ssh.
package notify

import (
	"context"
	"strings"

	serrors "github.com/hbschr/snapshotbackup/errors"
	"github.com/hbschr/snapshotbackup/internal/shell"
	"github.com/hbschr/snapshotbackup/logging"
)

const (
	notifySend = "notify-send"
	sshBin     = "ssh"
	okIcon     = "ok"
	errorIcon  = "error"
)

// Send shows title/message via notify-send, with the ok or error icon
// depending on failed. When remote is non-empty, the notify-send invocation
// is shell-quoted and executed on remote via ssh instead of locally.
//
// A missing notify-send (or ssh) binary is logged as a warning, not
// returned as an error: a failed notification must never fail the backup
// run it's reporting on.
func Send(ctx context.Context, title, message string, failed bool, remote string) error {
	icon := okIcon
	if failed {
		icon = errorIcon
	}
	argv := []string{notifySend, title, message, "-i", icon}
	if remote != "" {
		argv = []string{sshBin, remote, shellQuoteJoin(argv)}
	}

	if err := shell.Run(ctx, false, argv...); err != nil {
		if serrors.IsKind(err, serrors.ErrCommandNotFound) {
			logging.WarnContext(ctx, "could not send notification", "title", title, "message", message, "err", err)
			return nil
		}
		return err
	}
	return nil
}

// shellQuoteJoin quotes each argument for safe inclusion in a single
// remote shell command line, matching what the local exec call would have
// done with each as a separate argv entry.
func shellQuoteJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = quote(a)
	}
	return strings.Join(quoted, " ")
}

// quote wraps s in single quotes, escaping any embedded single quote the
// POSIX-shell way: close the quote, emit an escaped quote, reopen it.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
