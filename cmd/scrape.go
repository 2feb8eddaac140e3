package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/coffee-map-sync/internal/app"
)

// newScrapeCmd creates the 'scrape' subcommand.
func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Scrape every list page and save the snapshot",
		Long: `Fetches each configured list page and every entry's detail page, writes
the ordered records to the snapshot file, and reports whether the list changed
since the previous run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Scrape(cmd.Context())
			printScrape(cmd.OutOrStdout(), report)
			return closeOnError(appInstance, err)
		},
	}
}

func printScrape(w io.Writer, report app.ScrapeReport) {
	for _, c := range report.Scrape.Categories {
		status := "ok"
		if c.Err != nil {
			status = "failed: " + c.Err.Error()
		}
		fmt.Fprintf(w, "%s: %d entries, %d skipped, %d degraded, %d detail failures, missing ranks %v (%s)\n",
			c.Category, c.Records, c.Skipped, c.Degraded, c.DetailFailures, c.MissingRanks, status)
	}
	if report.Saved {
		fmt.Fprintf(w, "Snapshot: %s\n", report.Snapshot.Location)
		fmt.Fprintf(w, "Detected changes: %t\n", report.Snapshot.Changed)
	}
}
