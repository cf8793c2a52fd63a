package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/logging"
	"github.com/JakeFAU/apartment-crawler/internal/metrics"
)

// Extraction outcomes reported to metrics.
const (
	StatusExtracted = "extracted"
	StatusSkipped   = "skipped"
)

// Store is the persistence the extraction pass needs.
type Store interface {
	crawler.RawSource
	crawler.DetailStore
}

// Options narrows an extraction pass.
type Options struct {
	URL       string
	Limit     int
	Overwrite bool
}

// Runner feeds stored raw records through an Engine and persists the results.
type Runner struct {
	store    Store
	engine   *Engine
	logger   *zap.Logger
	progress bool
}

// NewRunner wires a Runner.
func NewRunner(store Store, engine *Engine, logger *zap.Logger, progress bool) *Runner {
	return &Runner{
		store:    store,
		engine:   engine,
		logger:   logging.OrNop(logger).Named("extract"),
		progress: progress,
	}
}

// Run extracts every raw record matching opts. A record that fails to parse
// is logged and skipped; storage errors stop the pass.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Overwrite {
		if err := r.store.DeleteDetails(ctx); err != nil {
			return nil, fmt.Errorf("clear extracted records: %w", err)
		}
		r.logger.Info("cleared previous extraction results")
	}

	raws, err := r.store.ListRaw(ctx, crawler.RawQuery{URL: opts.URL, Limit: opts.Limit})
	if err != nil {
		return nil, fmt.Errorf("list raw records: %w", err)
	}
	r.logger.Info("extracting records", zap.Int("total", len(raws)), zap.String("url", opts.URL))

	summary := newSummary(len(raws))
	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rec, err := r.engine.Extract(raw)
		if err != nil {
			summary.Skipped++
			metrics.ObserveExtraction(StatusSkipped)
			r.logger.Error("skipping record",
				zap.Int64("id", raw.ID),
				zap.String("url", raw.URL),
				zap.Error(err),
			)
			continue
		}
		if err := r.store.InsertDetails(ctx, rec); err != nil {
			return summary, fmt.Errorf("store extracted record %d: %w", raw.ID, err)
		}
		for _, field := range summary.add(rec) {
			metrics.ObserveFieldPresent(field)
		}
		metrics.ObserveExtraction(StatusExtracted)
		if ce := r.logger.Check(logging.ProgressLevel(r.progress), "extracted record"); ce != nil {
			ce.Write(
				zap.Int64("id", raw.ID),
				zap.Int("done", i+1),
				zap.Int("total", len(raws)),
			)
		}
	}

	r.logger.Info("extraction complete",
		zap.Int("extracted", summary.Extracted),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}
