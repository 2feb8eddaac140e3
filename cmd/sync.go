package cmd

import (
	"github.com/spf13/cobra"
)

// newSyncCmd creates the 'sync' subcommand.
func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Scrape, then geocode the fresh records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Sync(cmd.Context())
			printScrape(cmd.OutOrStdout(), report.Scrape)
			if report.Scrape.Saved {
				printGeocode(cmd.OutOrStdout(), report.Geocode)
			}
			return closeOnError(appInstance, err)
		},
	}
}
