package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-attend/pkg/auth"
	"github.com/teslashibe/go-attend/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List attendance records",
	Long: `List attendance records for the logged-in user. With no date flags,
today's records are shown.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("year", 0, "Filter by year")
	historyCmd.Flags().Int("month", 0, "Filter by month (1-12)")
	historyCmd.Flags().Int("day", 0, "Filter by day of month")
	historyCmd.Flags().Bool("json", false, "Print records as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	f := history.Filter{
		Year:  mustGetInt(cmd, "year"),
		Month: mustGetInt(cmd, "month"),
		Day:   mustGetInt(cmd, "day"),
	}
	if f == (history.Filter{}) {
		f = history.Today()
	}

	client := history.NewClient(cfg.APIURL, auth.NewFileStore(cfg.TokenFile), nil)
	records, err := client.List(cmd.Context(), f)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No attendance records.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTIME\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.AttendanceID, r.Date, r.Time, r.Status)
	}
	return w.Flush()
}
