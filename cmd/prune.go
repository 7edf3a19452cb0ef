package cmd

import (
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune <job>",
	Short: "delete snapshots not held by the retention policy",
	Long:  `Delete every snapshot the retention policy (retain-all / retain-daily / weekly) doesn't keep.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPrune,
}

var pruneYes bool

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVarP(&pruneYes, "yes", "y", false, "delete without asking for confirmation")
}

func runPrune(cmd *cobra.Command, args []string) error {
	markDomainEntered()
	ctx := GetContext()
	_, w, err := loadJob(args[0])
	if err != nil {
		return err
	}
	return w.Prune(ctx, confirmPrompt(pruneYes))
}
