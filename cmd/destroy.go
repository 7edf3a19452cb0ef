package cmd

import (
	"github.com/spf13/cobra"

	serrors "github.com/hbschr/snapshotbackup/errors"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <job>",
	Short: "delete every snapshot and the backup directory itself",
	Long: `Delete the sync subvolume, then every snapshot, then remove the backup
root directory. Irreversible; requires --force.`,
	Args: cobra.ExactArgs(1),
	RunE: runDestroy,
}

var (
	destroyYes   bool
	destroyForce bool
)

func init() {
	rootCmd.AddCommand(destroyCmd)

	destroyCmd.Flags().BoolVarP(&destroyYes, "yes", "y", false, "delete without asking for confirmation")
	destroyCmd.Flags().BoolVar(&destroyForce, "force", false, "required to confirm this irreversible operation")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	markDomainEntered()
	if !destroyForce {
		return serrors.New(serrors.ErrInternal, "destroy", "refusing to destroy without --force")
	}

	ctx := GetContext()
	_, w, err := loadJob(args[0])
	if err != nil {
		return err
	}
	return w.Destroy(ctx, confirmPrompt(destroyYes))
}
