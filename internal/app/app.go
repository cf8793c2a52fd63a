// Package app builds the long-lived services from configuration and runs each
// pipeline stage on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/clock/system"
	"github.com/JakeFAU/apartment-crawler/internal/config"
	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/deploy"
	"github.com/JakeFAU/apartment-crawler/internal/downloader"
	"github.com/JakeFAU/apartment-crawler/internal/extract"
	"github.com/JakeFAU/apartment-crawler/internal/fetcher"
	"github.com/JakeFAU/apartment-crawler/internal/flatten"
	"github.com/JakeFAU/apartment-crawler/internal/frontier"
	"github.com/JakeFAU/apartment-crawler/internal/geocode"
	"github.com/JakeFAU/apartment-crawler/internal/id/uuid"
	"github.com/JakeFAU/apartment-crawler/internal/logging"
	"github.com/JakeFAU/apartment-crawler/internal/metrics"
	"github.com/JakeFAU/apartment-crawler/internal/origin"
	"github.com/JakeFAU/apartment-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/apartment-crawler/internal/storage/gcs"
	"github.com/JakeFAU/apartment-crawler/internal/storage/local"
	"github.com/JakeFAU/apartment-crawler/internal/storage/memory"
	"github.com/JakeFAU/apartment-crawler/internal/storage/postgres"
	"github.com/JakeFAU/apartment-crawler/internal/upload"
)

// App holds the shared services for one CLI invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    crawler.Store
	clock    crawler.Clock
	ids      crawler.IDGenerator
	progress bool

	// Opened on first use unless preset by an Option.
	fetcher   crawler.Fetcher
	blobs     crawler.BlobStore
	publisher crawler.Publisher

	metricsSrv *http.Server
	closeOnce  sync.Once
	closers    []func() error
}

// Option customizes an App.
type Option func(*App)

// WithStore replaces the configured record store.
func WithStore(store crawler.Store) Option {
	return func(a *App) { a.store = store }
}

// WithFetcher replaces the colly-backed fetcher.
func WithFetcher(f crawler.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithBlobStore replaces the configured upload target.
func WithBlobStore(b crawler.BlobStore) Option {
	return func(a *App) { a.blobs = b }
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(p crawler.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithClock replaces the wall clock.
func WithClock(c crawler.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithProgress toggles per-record progress logging.
func WithProgress(enabled bool) Option {
	return func(a *App) { a.progress = enabled }
}

// New opens the record store, applies its schema and starts the metrics
// listener when configured. Upload targets are opened lazily since most
// stages never need cloud credentials.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logging.OrNop(logger),
		clock:    system.New(),
		ids:      uuid.New(),
		progress: true,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.store = store
	}
	a.closers = append(a.closers, func() error { a.store.Close(); return nil })

	if err := a.store.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if cfg.Metrics.Addr != "" {
		a.startMetrics(cfg.Metrics.Addr)
	}
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config) (crawler.Store, error) {
	switch cfg.Storage.Provider {
	case "memory":
		return memory.NewStore(), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func (a *App) startMetrics(addr string) {
	a.metricsSrv = &http.Server{Addr: addr, Handler: metrics.Router(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info("metrics server listening", zap.String("addr", addr))
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.metricsSrv.Shutdown(ctx)
	})
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Close releases every service. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				a.logger.Warn("error closing service", zap.Error(err))
			}
		}
		_ = a.logger.Sync()
	})
}

func (a *App) newFetcher() (crawler.Fetcher, error) {
	if a.fetcher != nil {
		return a.fetcher, nil
	}
	var transport fetcher.Transport
	switch a.cfg.Crawler.Transport {
	case "headless":
		browser, err := fetcher.NewChromedpTransport(fetcher.ChromedpConfig{
			UserAgent: a.cfg.Crawler.UserAgent,
			Timeout:   a.cfg.Crawler.RequestTimeout,
			ExecPath:  a.cfg.Crawler.BrowserPath,
		})
		if err != nil {
			return nil, fmt.Errorf("start headless browser: %w", err)
		}
		a.closers = append(a.closers, browser.Close)
		transport = browser
	default:
		transport = fetcher.NewCollyTransport(fetcher.CollyConfig{
			UserAgent: a.cfg.Crawler.UserAgent,
			Timeout:   a.cfg.Crawler.RequestTimeout,
		})
	}
	a.fetcher = fetcher.New(transport, fetcher.Config{
		Delay:       a.cfg.Crawler.Delay,
		MaxAttempts: a.cfg.Crawler.MaxAttempts,
	}, a.logger)
	return a.fetcher, nil
}

func (a *App) blobStore(ctx context.Context) (crawler.BlobStore, error) {
	if a.blobs != nil {
		return a.blobs, nil
	}
	switch a.cfg.Upload.Provider {
	case "local":
		store, err := local.New(local.Config{BaseDir: a.cfg.Upload.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("open local upload dir: %w", err)
		}
		a.blobs = store
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Upload.Bucket, CacheControl: a.cfg.Upload.CacheControl})
		if err != nil {
			return nil, err
		}
		if err := store.Verify(ctx); err != nil {
			return nil, err
		}
		a.blobs = store
	default:
		return nil, fmt.Errorf("unknown upload provider %q", a.cfg.Upload.Provider)
	}
	return a.blobs, nil
}

// eventPublisher returns nil when Pub/Sub is not configured.
func (a *App) eventPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.publisher != nil {
		return a.publisher, nil
	}
	if a.cfg.PubSub.ProjectID == "" {
		return nil, nil
	}
	pub, err := pubsub.New(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pub.Close)
	a.publisher = pub
	return pub, nil
}

// Crawl walks every enabled origin, records the run and stores each distinct
// listing's markup. It returns the number of stored listings.
func (a *App) Crawl(ctx context.Context) (int, error) {
	origins, err := origin.Enabled(a.cfg.Crawler.Origins)
	if err != nil {
		return 0, err
	}
	f, err := a.newFetcher()
	if err != nil {
		return 0, err
	}
	fr, err := frontier.New(f, a.cfg.Crawler.BaseURL, a.logger)
	if err != nil {
		return 0, err
	}

	runID, err := a.ids.NewID()
	if err != nil {
		return 0, err
	}
	run := crawler.Run{ID: runID, StartedAt: a.clock.Now(), Origins: origins}
	if err := a.store.RecordRun(ctx, run); err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	a.logger.Info("crawl started",
		zap.String("run_id", runID),
		zap.Strings("origins", a.cfg.Crawler.Origins),
	)

	listings, err := fr.Crawl(ctx, origins)
	if err != nil {
		return 0, err
	}
	return downloader.New(f, a.store, a.logger, a.progress).Download(ctx, listings)
}

// Extract runs the extraction pass.
func (a *App) Extract(ctx context.Context, opts extract.Options) (*extract.Summary, error) {
	locale, err := extract.LookupLocale(a.cfg.Extract.Locale)
	if err != nil {
		return nil, err
	}
	engine := extract.New(locale, a.cfg.Location())
	return extract.NewRunner(a.store, engine, a.logger, a.progress).Run(ctx, opts)
}

// Geocode resolves every extracted address.
func (a *App) Geocode(ctx context.Context) (*geocode.Summary, error) {
	client, err := geocode.NewClient(a.cfg.Geocoder.Endpoint, a.cfg.Geocoder.Timeout)
	if err != nil {
		return nil, err
	}
	return geocode.NewRunner(a.store, client, a.logger, a.progress).Run(ctx)
}

// Flatten writes the publish-ready dataset to the configured file.
func (a *App) Flatten(ctx context.Context) (flatten.Dataset, error) {
	return flatten.New(a.store, a.clock, a.logger).WriteFile(ctx, a.cfg.Flatten.Output)
}

// Upload compresses and ships the configured files, then announces them on
// Pub/Sub when a topic is configured.
func (a *App) Upload(ctx context.Context) (upload.Event, error) {
	blobs, err := a.blobStore(ctx)
	if err != nil {
		return upload.Event{}, err
	}
	pub, err := a.eventPublisher(ctx)
	if err != nil {
		return upload.Event{}, err
	}
	uploader, err := upload.New(blobs, pub, a.clock, a.ids, upload.Config{
		Prefix: a.cfg.Upload.Prefix,
		Files:  a.cfg.Upload.Files,
		Topic:  a.cfg.PubSub.TopicName,
	}, a.logger)
	if err != nil {
		return upload.Event{}, err
	}
	return uploader.Upload(ctx)
}

// Deploy triggers the site rebuild hook.
func (a *App) Deploy(ctx context.Context) error {
	trigger, err := deploy.New(a.cfg.Deploy.RebuildEndpoint, a.cfg.Deploy.Timeout, a.logger)
	if err != nil {
		return err
	}
	return trigger.Rebuild(ctx)
}
