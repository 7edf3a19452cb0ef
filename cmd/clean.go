package cmd

import (
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean <job>",
	Short: "remove a job's sync subvolume",
	Long:  `Delete the writable sync subvolume, if present. Leaves completed snapshots untouched.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	markDomainEntered()
	ctx := GetContext()
	_, w, err := loadJob(args[0])
	if err != nil {
		return err
	}
	return w.Clean(ctx)
}
