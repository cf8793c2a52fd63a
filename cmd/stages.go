package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/extract"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Walk every enabled origin and store each listing's raw page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runCrawl(cmd.Context(), a)
		},
	}
}

func runCrawl(ctx context.Context, a App) error {
	n, err := a.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	a.Logger().Info("crawl finished", zap.Int("stored", n))
	return nil
}

func newExtractCmd() *cobra.Command {
	var opts extract.Options
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Parse stored listing pages into structured records",
		Long: `extract reads stored raw pages, pulls out the headline, price, rooms,
bathrooms, address, posting date and description, and stores one record per
page. Pages that cannot be parsed are logged and skipped. A field coverage
table is printed when the pass completes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := a.Extract(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			return summary.WriteTable(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.URL, "url", "", "only process the raw page with this URL")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "process at most this many raw pages (0 means all)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "delete existing extracted records first")
	return cmd
}

func newGeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode",
		Short: "Resolve extracted addresses to coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := a.Geocode(cmd.Context())
			if err != nil {
				return fmt.Errorf("geocode: %w", err)
			}
			return summary.WriteTable(cmd.OutOrStdout())
		},
	}
}

func newFlattenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flatten",
		Short: "Write the publish-ready JSON dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runFlatten(cmd.Context(), a)
		},
	}
}

func runFlatten(ctx context.Context, a App) error {
	dataset, err := a.Flatten(ctx)
	if err != nil {
		return fmt.Errorf("flatten: %w", err)
	}
	a.Logger().Info("dataset written", zap.Int("apartments", len(dataset.Apartments)))
	return nil
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Compress and upload the dataset files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runUpload(cmd.Context(), a)
		},
	}
}

func runUpload(ctx context.Context, a App) error {
	event, err := a.Upload(ctx)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	a.Logger().Info("upload finished", zap.String("run_id", event.RunID), zap.Strings("objects", event.Objects))
	return nil
}

func newDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Trigger the frontend rebuild hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Deploy(cmd.Context()); err != nil {
				return fmt.Errorf("deploy: %w", err)
			}
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	var deploy bool
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run crawl, extract, geocode, flatten and upload in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := runCrawl(ctx, a); err != nil {
				return err
			}
			summary, err := a.Extract(ctx, extract.Options{})
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			if err := summary.WriteTable(cmd.OutOrStdout()); err != nil {
				return err
			}
			geo, err := a.Geocode(ctx)
			if err != nil {
				return fmt.Errorf("geocode: %w", err)
			}
			if err := geo.WriteTable(cmd.OutOrStdout()); err != nil {
				return err
			}
			if err := runFlatten(ctx, a); err != nil {
				return err
			}
			if err := runUpload(ctx, a); err != nil {
				return err
			}
			if !deploy {
				return nil
			}
			if err := a.Deploy(ctx); err != nil {
				return fmt.Errorf("deploy: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&deploy, "deploy", false, "trigger the rebuild hook after uploading")
	return cmd
}
