// Package downloader fetches the markup of each distinct listing and hands it
// to storage one record at a time.
package downloader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/logging"
)

// Downloader turns Listings into persisted RawRecords.
type Downloader struct {
	fetcher  crawler.Fetcher
	sink     crawler.RawSink
	logger   *zap.Logger
	progress bool
}

// New builds a Downloader. When progress is true each stored listing is logged
// at info level, otherwise at debug.
func New(fetcher crawler.Fetcher, sink crawler.RawSink, logger *zap.Logger, progress bool) *Downloader {
	return &Downloader{
		fetcher:  fetcher,
		sink:     sink,
		logger:   logging.OrNop(logger).Named("downloader"),
		progress: progress,
	}
}

// Download fetches listings in order and stores each as soon as it arrives, so
// records already written survive a later failure. It returns the number of
// records stored.
func (d *Downloader) Download(ctx context.Context, listings []crawler.Listing) (int, error) {
	d.logger.Info("downloading listings", zap.Int("total", len(listings)))
	stored := 0
	for i, listing := range listings {
		body, err := d.fetcher.Fetch(ctx, listing.URL)
		if err != nil {
			return stored, fmt.Errorf("download %s: %w", listing.URL, err)
		}
		record := crawler.RawRecord{
			OriginCode: listing.Origin.ShortCode,
			URL:        listing.URL,
			Content:    string(body),
		}
		id, err := d.sink.InsertRaw(ctx, record)
		if err != nil {
			return stored, fmt.Errorf("store %s: %w", listing.URL, err)
		}
		stored++
		if ce := d.logger.Check(logging.ProgressLevel(d.progress), "stored listing"); ce != nil {
			ce.Write(
				zap.Int64("id", id),
				zap.String("url", listing.URL),
				zap.Int("done", i+1),
				zap.Int("total", len(listings)),
			)
		}
	}
	d.logger.Info("download complete", zap.Int("stored", stored))
	return stored, nil
}
