package geocode

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/logging"
	"github.com/JakeFAU/apartment-crawler/internal/metrics"
)

// Geocoder resolves one address.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Result, error)
}

// Store is the persistence the geocoding pass needs.
type Store interface {
	ListDetails(ctx context.Context) ([]crawler.ExtractedRecord, error)
	crawler.AddressStore
}

// Summary reports how a geocoding pass went.
type Summary struct {
	Total     int
	NoAddress int
	Geocoded  int
	CacheHits int
}

// GeocodedPercent is the share of records that got coordinates.
func (s *Summary) GeocodedPercent() float64 {
	return percent(s.Geocoded, s.Total)
}

// CacheHitPercent is the share of records answered from the service cache.
func (s *Summary) CacheHitPercent() float64 {
	return percent(s.CacheHits, s.Total)
}

// WriteTable renders the two-line summary.
func (s *Summary) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "successfully geocoded\t%.2f%%\n", s.GeocodedPercent())
	fmt.Fprintf(tw, "cache hit percentage\t%.2f%%\n", s.CacheHitPercent())
	return tw.Flush()
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// Runner geocodes every extracted record that has an address.
type Runner struct {
	store    Store
	geocoder Geocoder
	logger   *zap.Logger
	progress bool
}

// NewRunner wires a Runner.
func NewRunner(store Store, geocoder Geocoder, logger *zap.Logger, progress bool) *Runner {
	return &Runner{
		store:    store,
		geocoder: geocoder,
		logger:   logging.OrNop(logger).Named("geocode"),
		progress: progress,
	}
}

// Run looks up each address one at a time and stores the ones that resolve.
// Service errors stop the pass.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	details, err := r.store.ListDetails(ctx)
	if err != nil {
		return nil, fmt.Errorf("list extracted records: %w", err)
	}
	r.logger.Info("geocoding records", zap.Int("total", len(details)))

	summary := &Summary{Total: len(details)}
	for i, rec := range details {
		address, ok := rec.RawAddress.Get()
		if !ok {
			summary.NoAddress++
			continue
		}
		res, err := r.geocoder.Geocode(ctx, address)
		if err != nil {
			return summary, err
		}
		if res.CacheHit {
			summary.CacheHits++
		}
		loc, found := res.Location.Get()
		metrics.ObserveGeocode(found, res.CacheHit)
		if found {
			err := r.store.InsertAddress(ctx, crawler.Address{
				RawID:            rec.RawID,
				Latitude:         loc.Latitude,
				Longitude:        loc.Longitude,
				FormattedAddress: loc.FormattedAddress,
			})
			if err != nil {
				return summary, fmt.Errorf("store address for %d: %w", rec.RawID, err)
			}
			summary.Geocoded++
		} else {
			r.logger.Debug("address not found", zap.Int64("id", rec.RawID), zap.String("address", address))
		}
		if ce := r.logger.Check(logging.ProgressLevel(r.progress), "geocoded record"); ce != nil {
			ce.Write(
				zap.Int64("id", rec.RawID),
				zap.Bool("found", found),
				zap.Int("done", i+1),
				zap.Int("total", len(details)),
			)
		}
	}

	r.logger.Info("geocoding complete",
		zap.Int("geocoded", summary.Geocoded),
		zap.Int("cache_hits", summary.CacheHits),
		zap.Int("no_address", summary.NoAddress),
	)
	return summary, nil
}
