package cmd

import (
	"github.com/spf13/cobra"
)

var decayCmd = &cobra.Command{
	Use:   "decay <job>",
	Short: "delete snapshots past the decay threshold",
	Long:  `Delete every snapshot older than the job's configured "decay" threshold, excluding the latest one.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDecay,
}

var decayYes bool

func init() {
	rootCmd.AddCommand(decayCmd)

	decayCmd.Flags().BoolVarP(&decayYes, "yes", "y", false, "delete without asking for confirmation")
}

func runDecay(cmd *cobra.Command, args []string) error {
	markDomainEntered()
	ctx := GetContext()
	_, w, err := loadJob(args[0])
	if err != nil {
		return err
	}
	return w.Decay(ctx, confirmPrompt(decayYes))
}
