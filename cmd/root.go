// Package cmd defines and implements the CLI commands for the coffeemap executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/coffee-map-sync/internal/app"
	"github.com/JakeFAU/coffee-map-sync/internal/config"
	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
	"github.com/JakeFAU/coffee-map-sync/internal/geocode"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Logger() *zap.Logger
	Scrape(ctx context.Context) (app.ScrapeReport, error)
	Geocode(ctx context.Context, raws []crawler.RawRecord) (geocode.EnrichReport, error)
	Sync(ctx context.Context) (app.SyncReport, error)
	Close() error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(cfgPath string, command string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, command)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "coffeemap",
		Short: "Scrape a ranked coffee shop list and enrich it with place data.",
		Long: `coffeemap keeps a point-in-time copy of a published ranked list of coffee
shops and resolves every entry to coordinates and a stable place ID. Resolved
entries are cached so a place is only looked up once across runs.`,
		SilenceUsage: true,

		// Build and inject the application before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cfgFile, cmd.Name())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// Shut services down and dump metrics.
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				return appInstance.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML); env vars use the COFFEEMAP_ prefix")

	cmd.AddCommand(newScrapeCmd(), newGeocodeCmd(), newSyncCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signalContext()
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "coffeemap:", err)
		stop()
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// closeOnError runs Close when a command fails, since cobra skips
// PersistentPostRunE after a RunE error.
func closeOnError(appInstance App, err error) error {
	if err == nil {
		return nil
	}
	if cerr := appInstance.Close(); cerr != nil {
		appInstance.Logger().Warn("close after failure", zap.Error(cerr))
	}
	return err
}
