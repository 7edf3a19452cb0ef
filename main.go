// snapshotbackup is an incremental, retention-managed backup tool built on
// rsync and btrfs CoW snapshots.
//
// Commands:
//
//	setup    - create a job's backup directory
//	backup   - sync a job's source and freeze a new snapshot
//	list     - list a job's snapshots and their retention classification
//	decay    - delete snapshots past the decay threshold
//	prune    - delete snapshots not held by the retention policy
//	destroy  - delete every snapshot and the backup directory itself
//	clean    - remove a job's sync subvolume
//	version  - print version information
package main

import (
	"fmt"
	"os"

	"github.com/hbschr/snapshotbackup/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if cmd.IsUsageError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
