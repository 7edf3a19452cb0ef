// Package cmd implements the CLI commands for snapshotbackup.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hbschr/snapshotbackup/config"
	"github.com/hbschr/snapshotbackup/internal/backup"
	"github.com/hbschr/snapshotbackup/internal/worker"
	"github.com/hbschr/snapshotbackup/logging"
)

// Version information set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// Global flags.
var (
	globalConfig  string
	globalVerbose bool
	globalDebug   bool
)

// rootCmd is the base command for snapshotbackup.
var rootCmd = &cobra.Command{
	Use:   "snapshotbackup",
	Short: "incremental, retention-managed backups over rsync + btrfs snapshots",
	Long: `snapshotbackup syncs a source tree into a writable btrfs subvolume via
rsync, then freezes it into a read-only snapshot. A retention policy decides
which snapshots to keep, which decay (are expendable but harmless to keep a
while longer), and which to prune on the next cleanup.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
}

// enteredDomain is set once a subcommand's RunE begins, which only
// happens after cobra has finished parsing flags and validating
// positional args. Execute uses it to tell a usage mistake (unknown
// command, bad flag, wrong arg count) apart from a failure raised by
// the domain layer itself.
var enteredDomain bool

// usageError marks an error as a command-line usage mistake, mapped to
// exit code 2 by main instead of the generic 1.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// IsUsageError reports whether err indicates a CLI usage mistake, as
// opposed to an engine failure.
func IsUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}

// markDomainEntered flags that a subcommand's RunE began running, so
// Execute can classify a later error as a domain failure rather than a
// usage mistake.
func markDomainEntered() {
	enteredDomain = true
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		if !enteredDomain {
			return &usageError{err}
		}
		return err
	}
	return nil
}

// GetContext returns a context that cancels on SIGINT/SIGTERM.
func GetContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalConfig, "config", "c", "/etc/snapshotbackup.ini", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "enable info-level logging (subprocess output is not shown)")
	rootCmd.PersistentFlags().BoolVar(&globalDebug, "debug", false, "enable debug logging, including per-line subprocess output")
}

func setupLogging() {
	level := slog.LevelWarn
	if globalVerbose {
		level = slog.LevelInfo
	}
	if globalDebug {
		level = logging.LevelShell
	}
	logging.SetDefault(logging.NewLogger(logging.Config{
		Level:  level,
		Format: "text",
		Output: os.Stderr,
	}))
}

// loadJob resolves the named job section from the configured INI file and
// constructs the Worker it describes.
func loadJob(name string) (*config.Job, *worker.Worker, error) {
	job, err := config.Load(globalConfig, name)
	if err != nil {
		return nil, nil, err
	}
	w, err := worker.New(job.Backups, worker.Thresholds{
		RetainAllAfter:   job.RetainAllAfter,
		RetainDailyAfter: job.RetainDailyAfter,
		DecayBefore:      job.DecayBefore,
	})
	if err != nil {
		return nil, nil, err
	}
	return job, w, nil
}

// confirmPrompt returns a worker.Prompt. When yes is true it approves every
// record without asking; otherwise it asks once per record on stdin/stderr.
func confirmPrompt(yes bool) worker.Prompt {
	if yes {
		return func(*backup.Record) bool { return true }
	}
	reader := bufio.NewReader(os.Stdin)
	return func(r *backup.Record) bool {
		fmt.Fprintf(os.Stderr, "delete %s? [y/N] ", r.Name)
		line, _ := reader.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
