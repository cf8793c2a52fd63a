// Package config loads and validates apartment crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/apartment-crawler/internal/extract"
	"github.com/JakeFAU/apartment-crawler/internal/origin"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Flatten  FlattenConfig  `mapstructure:"flatten"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Deploy   DeployConfig   `mapstructure:"deploy"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs the frontier and the rate-limited fetcher.
type CrawlerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	Delay          time.Duration `mapstructure:"delay"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Origins        []string      `mapstructure:"origins"`
	// Transport is "colly" for plain HTTP or "headless" for a Chrome renderer.
	Transport   string `mapstructure:"transport"`
	BrowserPath string `mapstructure:"browser_path"`
}

// ExtractConfig selects the source site's locale for label and date parsing.
type ExtractConfig struct {
	Locale   string `mapstructure:"locale"`
	Timezone string `mapstructure:"timezone"`
}

// StorageConfig selects the record store implementation.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// GeocoderConfig points at the external geocoding service.
type GeocoderConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// FlattenConfig names the publish-ready dataset file.
type FlattenConfig struct {
	Output string `mapstructure:"output"`
}

// UploadConfig controls where compressed datasets are shipped.
type UploadConfig struct {
	Provider     string   `mapstructure:"provider"`
	Bucket       string   `mapstructure:"bucket"`
	Prefix       string   `mapstructure:"prefix"`
	LocalDir     string   `mapstructure:"local_dir"`
	Files        []string `mapstructure:"files"`
	CacheControl string   `mapstructure:"cache_control"`
}

// DeployConfig names the site rebuild hook.
type DeployConfig struct {
	RebuildEndpoint string        `mapstructure:"rebuild_endpoint"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APARTMENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("deploy.rebuild_endpoint", "APARTMENTS_DEPLOY_REBUILD_ENDPOINT", "NETLIFY_REBUILD_ENDPOINT"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("crawler.base_url", "https://www.kijiji.ca")
	v.SetDefault("crawler.user_agent", "apartment-crawler/1.0")
	v.SetDefault("crawler.delay", 3500*time.Millisecond)
	v.SetDefault("crawler.max_attempts", 3)
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("crawler.origins", origin.DefaultEnabled)
	v.SetDefault("crawler.transport", "colly")
	v.SetDefault("crawler.browser_path", "")
	v.SetDefault("extract.locale", "fr")
	v.SetDefault("extract.timezone", "UTC")
	v.SetDefault("storage.provider", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("geocoder.endpoint", "http://localhost:5000")
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("flatten.output", "frontend.json")
	v.SetDefault("upload.provider", "gcs")
	v.SetDefault("upload.bucket", "kijiji-apartments")
	v.SetDefault("upload.prefix", "v3")
	v.SetDefault("upload.local_dir", "data/upload")
	v.SetDefault("upload.files", []string{"frontend.json"})
	v.SetDefault("upload.cache_control", "no-cache")
	v.SetDefault("deploy.timeout", 30*time.Second)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawler.BaseURL) == "" {
		return fmt.Errorf("crawler.base_url is required")
	}
	if c.Crawler.Delay < 0 {
		return fmt.Errorf("crawler.delay must be >= 0")
	}
	if c.Crawler.MaxAttempts <= 0 {
		return fmt.Errorf("crawler.max_attempts must be > 0")
	}
	switch c.Crawler.Transport {
	case "", "colly", "headless":
	default:
		return fmt.Errorf("unknown crawler.transport %q", c.Crawler.Transport)
	}
	if _, err := origin.Enabled(c.Crawler.Origins); err != nil {
		return fmt.Errorf("crawler.origins: %w", err)
	}
	if _, err := extract.LookupLocale(c.Extract.Locale); err != nil {
		return fmt.Errorf("extract.locale: %w", err)
	}
	if _, err := time.LoadLocation(c.Extract.Timezone); err != nil {
		return fmt.Errorf("extract.timezone: %w", err)
	}
	switch c.Storage.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when storage.provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	switch c.Upload.Provider {
	case "gcs":
		if c.Upload.Bucket == "" {
			return fmt.Errorf("upload.bucket must be set when upload.provider is gcs")
		}
	case "local":
		if c.Upload.LocalDir == "" {
			return fmt.Errorf("upload.local_dir must be set when upload.provider is local")
		}
	default:
		return fmt.Errorf("unknown upload.provider %q", c.Upload.Provider)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// Location returns the configured timezone for legacy date parsing.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Extract.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
