// Package cmd defines the apartments CLI: one subcommand per pipeline stage.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/app"
	"github.com/JakeFAU/apartment-crawler/internal/config"
	"github.com/JakeFAU/apartment-crawler/internal/extract"
	"github.com/JakeFAU/apartment-crawler/internal/flatten"
	"github.com/JakeFAU/apartment-crawler/internal/geocode"
	"github.com/JakeFAU/apartment-crawler/internal/logging"
	"github.com/JakeFAU/apartment-crawler/internal/upload"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the surface the subcommands use. Tests swap in a fake through newApp.
type App interface {
	Close()
	Logger() *zap.Logger
	Crawl(ctx context.Context) (int, error)
	Extract(ctx context.Context, opts extract.Options) (*extract.Summary, error)
	Geocode(ctx context.Context) (*geocode.Summary, error)
	Flatten(ctx context.Context) (flatten.Dataset, error)
	Upload(ctx context.Context) (upload.Event, error)
	Deploy(ctx context.Context) error
}

type rootOptions struct {
	configFile string
	envFile    string
	noProgress bool
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, opts rootOptions) (App, error) {
	if err := loadEnvFile(opts.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger, app.WithProgress(!opts.noProgress))
}

// loadEnvFile reads KEY=value pairs into the environment. A missing file is
// not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	opts := rootOptions{}
	cmd := &cobra.Command{
		Use:   "apartments",
		Short: "Crawls rental listings and publishes a cleaned, geocoded dataset.",
		Long: `apartments walks a classifieds site's apartment search results, stores the
raw listing pages, extracts structured fields, geocodes addresses and publishes
a flattened dataset for the map frontend. Each stage is its own subcommand so
stages can be rerun independently.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML, TOML or JSON)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.PersistentFlags().BoolVar(&opts.noProgress, "no-progress", false, "log per-record progress at debug level only")

	cmd.AddCommand(
		newCrawlCmd(),
		newExtractCmd(),
		newGeocodeCmd(),
		newFlattenCmd(),
		newUploadCmd(),
		newDeployCmd(),
		newAllCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
