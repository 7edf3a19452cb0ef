package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hbschr/snapshotbackup/cache"
	"github.com/hbschr/snapshotbackup/config"
	"github.com/hbschr/snapshotbackup/internal/timestamp"
	"github.com/hbschr/snapshotbackup/internal/worker"
	"github.com/hbschr/snapshotbackup/logging"
	"github.com/hbschr/snapshotbackup/notify"

	"github.com/fatih/color"
)

var backupCmd = &cobra.Command{
	Use:   "backup <job>",
	Short: "sync a job's source and freeze a new snapshot",
	Long: `Check source reachability, assure the writable sync subvolume, rsync the
source into it, then freeze it into a new read-only snapshot. Optionally
runs decay/prune afterward.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

var (
	backupDryRun      bool
	backupProgress    bool
	backupChecksum    bool
	backupNoAutoDecay bool
	backupNoAutoPrune bool
)

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().BoolVar(&backupDryRun, "dry-run", false, "rsync without writing, skip the snapshot")
	backupCmd.Flags().BoolVar(&backupProgress, "progress", false, "show rsync progress on the terminal")
	backupCmd.Flags().BoolVar(&backupChecksum, "checksum", false, "verify file contents by checksum instead of size+mtime")
	backupCmd.Flags().BoolVar(&backupNoAutoDecay, "no-autodecay", false, "skip autodecay even if the job config enables it")
	backupCmd.Flags().BoolVar(&backupNoAutoPrune, "no-autoprune", false, "skip autoprune even if the job config enables it")
}

func runBackup(cmd *cobra.Command, args []string) error {
	markDomainEntered()
	ctx := GetContext()
	name := args[0]

	job, w, err := loadJob(name)
	if err != nil {
		return err
	}

	opts := worker.BackupOptions{
		Excludes:  job.Ignore,
		AutoDecay: job.AutoDecay && !backupNoAutoDecay,
		AutoPrune: job.AutoPrune && !backupNoAutoPrune,
		Checksum:  backupChecksum,
		DryRun:    backupDryRun,
		Progress:  backupProgress,
	}

	err = w.Backup(ctx, job.Source, opts)
	reportOutcome(ctx, job, err)
	return err
}

// reportOutcome records a successful run in the cache, or sends a failure
// notification unless the last successful run is too recent to be worth
// alarming about.
func reportOutcome(ctx context.Context, job *config.Job, runErr error) {
	log := logging.FromContext(ctx)

	if runErr == nil {
		color.Green("backup `%s` finished", job.Name)
		if err := cache.SetLastRun(job.Name, timestamp.Now()); err != nil {
			log.WarnContext(ctx, "could not record last run", "job", job.Name, "error", err)
		}
		if err := notify.Send(ctx, job.Name, "backup succeeded", false, job.NotifyRemote); err != nil {
			log.WarnContext(ctx, "could not send notification", "job", job.Name, "error", err)
		}
		return
	}

	color.Red("backup `%s` failed: %v", job.Name, runErr)

	lastRun, ok := cache.GetLastRun(job.Name)
	if ok && job.SilentFailThreshold.After(timestamp.EarliestTime) && lastRun.After(job.SilentFailThreshold) {
		log.InfoContext(ctx, "suppressing failure notification, last successful run still recent",
			"job", job.Name, "last_run", lastRun)
		return
	}

	msg := fmt.Sprintf("backup failed: %v", runErr)
	if err := notify.Send(ctx, job.Name, msg, true, job.NotifyRemote); err != nil {
		log.WarnContext(ctx, "could not send notification", "job", job.Name, "error", err)
	}
}
