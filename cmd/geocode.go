package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/coffee-map-sync/internal/geocode"
)

// newGeocodeCmd creates the 'geocode' subcommand.
func newGeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode",
		Short: "Resolve the saved snapshot against the enrichment cache",
		Long: `Reads the last snapshot and resolves each entry to coordinates and a place
ID. Cached resolutions are reused; new lookups stop at the configured quota.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Geocode(cmd.Context(), nil)
			printGeocode(cmd.OutOrStdout(), report)
			return closeOnError(appInstance, err)
		},
	}
}

func printGeocode(w io.Writer, report geocode.EnrichReport) {
	fmt.Fprintf(w, "Geocoded %d records: %d lookups, %d resolved (%d low confidence), %d cached, %d unresolved, %d deferred\n",
		len(report.Records), report.Calls, report.Resolved, report.LowConfidence,
		report.CacheHits, report.Unresolved, report.Deferred)
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "  %s [%s]: %s\n", warn.Key, warn.Outcome, warn.Message)
	}
}
