package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hbschr/snapshotbackup/internal/backup"

	"github.com/fatih/color"
)

var listCmd = &cobra.Command{
	Use:   "list <job>",
	Short: "list a job's snapshots and their retention classification",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, json)")
}

func runList(cmd *cobra.Command, args []string) error {
	markDomainEntered()
	_, w, err := loadJob(args[0])
	if err != nil {
		return err
	}

	records, err := w.List()
	if err != nil {
		return err
	}

	if listFormat == "json" {
		return outputJSON(records)
	}
	return outputTable(records)
}

func outputTable(records []*backup.Record) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDAILY\tWEEKLY\tRETAIN ALL\tRETAIN DAILY\tDECAY\tPRUNE")

	for _, r := range records {
		row := fmt.Sprintf("%s\t%v\t%v\t%v\t%v\t%v\t%v",
			r.Name, r.IsDaily, r.IsWeekly, r.IsRetainAll, r.IsRetainDaily, r.Decay, r.Prune)
		switch {
		case r.IsLast:
			fmt.Fprintln(tw, color.GreenString(row))
		case r.Prune:
			fmt.Fprintln(tw, color.YellowString(row))
		default:
			fmt.Fprintln(tw, row)
		}
	}

	return tw.Flush()
}

func outputJSON(records []*backup.Record) error {
	type item struct {
		Name          string `json:"name"`
		IsLast        bool   `json:"is_last"`
		IsDaily       bool   `json:"is_daily"`
		IsWeekly      bool   `json:"is_weekly"`
		IsRetainAll   bool   `json:"is_retain_all"`
		IsRetainDaily bool   `json:"is_retain_daily"`
		Decay         bool   `json:"decay"`
		Prune         bool   `json:"prune"`
	}

	items := make([]item, len(records))
	for i, r := range records {
		items[i] = item{
			Name:          r.Name,
			IsLast:        r.IsLast,
			IsDaily:       r.IsDaily,
			IsWeekly:      r.IsWeekly,
			IsRetainAll:   r.IsRetainAll,
			IsRetainDaily: r.IsRetainDaily,
			Decay:         r.Decay,
			Prune:         r.Prune,
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(items)
}
