package cmd

import (
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup <job>",
	Short: "create the backup directory for a job",
	Long:  `Create the backup root directory named by a job's "backups" config key, recursively, if it doesn't already exist.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	markDomainEntered()
	_, w, err := loadJob(args[0])
	if err != nil {
		return err
	}
	return w.Setup()
}
