// Package flatten joins stored records into the publish-ready dataset read by
// the frontend.
package flatten

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/logging"
	"github.com/JakeFAU/apartment-crawler/internal/origin"
)

// Dataset is the flattened document written for the frontend.
type Dataset struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Runs        []crawler.Run       `json:"runs"`
	Origins     []origin.Origin     `json:"origins"`
	Apartments  []crawler.Apartment `json:"apartments"`
}

// Source is the read side of the record store.
type Source interface {
	ListRuns(ctx context.Context) ([]crawler.Run, error)
	ListOrigins(ctx context.Context) ([]origin.Origin, error)
	ListApartments(ctx context.Context) ([]crawler.Apartment, error)
}

// Flattener builds Datasets from a Source.
type Flattener struct {
	source   Source
	clock    crawler.Clock
	markdown *converter.Converter
	logger   *zap.Logger
}

// New wires a Flattener.
func New(source Source, clock crawler.Clock, logger *zap.Logger) *Flattener {
	return &Flattener{
		source: source,
		clock:  clock,
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		logger: logging.OrNop(logger).Named("flatten"),
	}
}

// Build reads every run, origin and fully joined apartment. Descriptions are
// also rendered as Markdown for clients that cannot display HTML.
func (f *Flattener) Build(ctx context.Context) (Dataset, error) {
	runs, err := f.source.ListRuns(ctx)
	if err != nil {
		return Dataset{}, fmt.Errorf("list runs: %w", err)
	}
	origins, err := f.source.ListOrigins(ctx)
	if err != nil {
		return Dataset{}, fmt.Errorf("list origins: %w", err)
	}
	apartments, err := f.source.ListApartments(ctx)
	if err != nil {
		return Dataset{}, fmt.Errorf("list apartments: %w", err)
	}

	for i := range apartments {
		a := &apartments[i]
		if a.Description == nil {
			continue
		}
		md, err := f.markdown.ConvertString(*a.Description)
		if err != nil {
			f.logger.Warn("description not converted", zap.Int64("id", a.ID), zap.Error(err))
			continue
		}
		md = strings.TrimSpace(md)
		a.DescriptionMarkdown = &md
	}

	return Dataset{
		GeneratedAt: f.clock.Now(),
		Runs:        nonNil(runs),
		Origins:     nonNil(origins),
		Apartments:  nonNil(apartments),
	}, nil
}

// Write encodes the dataset as JSON to w.
func (f *Flattener) Write(ctx context.Context, w io.Writer) (Dataset, error) {
	ds, err := f.Build(ctx)
	if err != nil {
		return Dataset{}, err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ds); err != nil {
		return Dataset{}, fmt.Errorf("encode dataset: %w", err)
	}
	return ds, nil
}

// WriteFile writes the dataset to path, replacing any previous file.
func (f *Flattener) WriteFile(ctx context.Context, path string) (Dataset, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Dataset{}, fmt.Errorf("create output directory: %w", err)
		}
	}
	file, err := os.Create(path) // #nosec G304 -- output path comes from configuration.
	if err != nil {
		return Dataset{}, fmt.Errorf("create %s: %w", path, err)
	}
	ds, err := f.Write(ctx, file)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close %s: %w", path, closeErr)
	}
	if err != nil {
		return Dataset{}, err
	}
	f.logger.Info("dataset written",
		zap.String("path", path),
		zap.Int("apartments", len(ds.Apartments)),
		zap.Int("origins", len(ds.Origins)),
	)
	return ds, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
