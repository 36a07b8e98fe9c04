// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
	"github.com/JakeFAU/listing-crawler/internal/logging"
	collyfetcher "github.com/JakeFAU/listing-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/listing-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/listing-crawler/internal/storage/gcs"
	"github.com/JakeFAU/listing-crawler/internal/storage/local"
	"github.com/JakeFAU/listing-crawler/internal/storage/postgres"
)

// Sink names accepted in output.sinks.
const (
	SinkFile     = "file"
	SinkPostgres = "postgres"
	SinkMemory   = "memory"
)

// Capture backends accepted in storage.backend.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Layout  LayoutConfig  `mapstructure:"layout"`
	Output  OutputConfig  `mapstructure:"output"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl run itself.
type CrawlerConfig struct {
	StartURL     string  `mapstructure:"start_url"`
	MaxPages     int     `mapstructure:"max_pages"`
	UserAgent    string  `mapstructure:"user_agent"`
	IgnoreRobots bool    `mapstructure:"ignore_robots"`
	RateRPS      float64 `mapstructure:"rate_rps"`
	RateBurst    int     `mapstructure:"rate_burst"`
}

// HTTPConfig configures request timeouts and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
	MaxBodyBytes     int `mapstructure:"max_body_bytes"`
}

// LayoutConfig mirrors crawler.Layout.
type LayoutConfig struct {
	Origin             string `mapstructure:"origin"`
	PaginationTag      string `mapstructure:"pagination_tag"`
	PaginationAttr     string `mapstructure:"pagination_attr"`
	PaginationValue    string `mapstructure:"pagination_value"`
	ContainerTag       string `mapstructure:"container_tag"`
	ContainerAttr      string `mapstructure:"container_attr"`
	ContainerValue     string `mapstructure:"container_value"`
	LinkTag            string `mapstructure:"link_tag"`
	PriceTag           string `mapstructure:"price_tag"`
	PageParam          string `mapstructure:"page_param"`
	SinglePageFallback bool   `mapstructure:"single_page_fallback"`
}

// OutputConfig selects where records and failure captures go.
type OutputConfig struct {
	Sinks            []string `mapstructure:"sinks"`
	Path             string   `mapstructure:"path"`
	Format           string   `mapstructure:"format"`
	ErrorCapturePath string   `mapstructure:"error_capture_path"`
}

// StorageConfig selects the blob store used for failure captures.
type StorageConfig struct {
	Backend string       `mapstructure:"backend"`
	Local   local.Config `mapstructure:"local"`
	GCS     gcs.Config   `mapstructure:"gcs"`
}

// DBConfig controls access to the Postgres record table.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
	EnsureTable            bool   `mapstructure:"ensure_table"`
}

// MetricsConfig controls the optional Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	layout := crawler.DefaultLayout()

	v.SetDefault("crawler.start_url", "")
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.user_agent", "listing-crawler/0.1")
	v.SetDefault("crawler.ignore_robots", true)
	v.SetDefault("crawler.rate_rps", 0.5)
	v.SetDefault("crawler.rate_burst", 1)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 0)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 30000)
	v.SetDefault("http.max_body_bytes", 0)
	v.SetDefault("layout.origin", layout.Origin)
	v.SetDefault("layout.pagination_tag", layout.PaginationTag)
	v.SetDefault("layout.pagination_attr", layout.PaginationAttr)
	v.SetDefault("layout.pagination_value", layout.PaginationValue)
	v.SetDefault("layout.container_tag", layout.ContainerTag)
	v.SetDefault("layout.container_attr", layout.ContainerAttr)
	v.SetDefault("layout.container_value", layout.ContainerValue)
	v.SetDefault("layout.link_tag", layout.LinkTag)
	v.SetDefault("layout.price_tag", layout.PriceTag)
	v.SetDefault("layout.page_param", layout.PageParam)
	v.SetDefault("layout.single_page_fallback", layout.SinglePageFallback)
	v.SetDefault("output.sinks", []string{SinkFile})
	v.SetDefault("output.path", "goods.txt")
	v.SetDefault("output.format", string(local.FormatText))
	v.SetDefault("output.error_capture_path", "error.txt")
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.local.base_dir", ".")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "listing_records")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("db.ensure_table", true)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "listing-crawler")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits. The start URL is
// checked separately by crawler.Config so `count` and `crawl` can take it from
// a flag.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if c.Crawler.RateRPS < 0 {
		return fmt.Errorf("crawler.rate_rps must be >= 0")
	}
	if err := c.CrawlerLayout().Validate(); err != nil {
		return err
	}
	if len(c.Output.Sinks) == 0 {
		return fmt.Errorf("output.sinks must name at least one sink")
	}
	for _, s := range c.Output.Sinks {
		switch s {
		case SinkFile:
			if strings.TrimSpace(c.Output.Path) == "" {
				return fmt.Errorf("output.path must be set for the file sink")
			}
			if _, err := local.ParseFormat(c.Output.Format); err != nil {
				return fmt.Errorf("output.format: %w", err)
			}
		case SinkPostgres:
			if c.DB.DSN == "" {
				return fmt.Errorf("db.dsn must be set for the postgres sink")
			}
		case SinkMemory:
		default:
			return fmt.Errorf("output.sinks: unknown sink %q", s)
		}
	}
	if strings.TrimSpace(c.Output.ErrorCapturePath) == "" {
		return fmt.Errorf("output.error_capture_path must be set")
	}
	switch c.Storage.Backend {
	case BackendLocal, BackendMemory:
	case BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if _, _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Metrics.PushgatewayURL != "" {
		if u, err := url.Parse(c.Metrics.PushgatewayURL); err != nil || u.Host == "" {
			return fmt.Errorf("metrics.pushgateway_url %q is not a valid URL", c.Metrics.PushgatewayURL)
		}
	}
	return nil
}

// HasSink reports whether name is listed in output.sinks.
func (c Config) HasSink(name string) bool {
	return slices.Contains(c.Output.Sinks, name)
}

// CrawlerConfig converts the crawl settings into crawler.Config.
func (c Config) CrawlerConfig() crawler.Config {
	return crawler.Config{
		StartURL: c.Crawler.StartURL,
		MaxPages: c.Crawler.MaxPages,
	}
}

// CrawlerLayout converts the layout section into crawler.Layout.
func (c Config) CrawlerLayout() crawler.Layout {
	return crawler.Layout{
		Origin:             c.Layout.Origin,
		PaginationTag:      c.Layout.PaginationTag,
		PaginationAttr:     c.Layout.PaginationAttr,
		PaginationValue:    c.Layout.PaginationValue,
		ContainerTag:       c.Layout.ContainerTag,
		ContainerAttr:      c.Layout.ContainerAttr,
		ContainerValue:     c.Layout.ContainerValue,
		LinkTag:            c.Layout.LinkTag,
		PriceTag:           c.Layout.PriceTag,
		PageParam:          c.Layout.PageParam,
		SinglePageFallback: c.Layout.SinglePageFallback,
	}
}

// FetcherConfig converts the HTTP settings into the colly fetcher config.
func (c Config) FetcherConfig() collyfetcher.Config {
	return collyfetcher.Config{
		UserAgent:     c.Crawler.UserAgent,
		RespectRobots: !c.Crawler.IgnoreRobots,
		Timeout:       time.Duration(c.HTTP.TimeoutSeconds) * time.Second,
		MaxBodySize:   c.HTTP.MaxBodyBytes,
	}
}

// RateLimitConfig converts the pacing settings.
func (c Config) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		DefaultRPS:   c.Crawler.RateRPS,
		DefaultBurst: c.Crawler.RateBurst,
	}
}

// RetryPolicy builds the fetch retry policy. max_retries counts extra
// attempts, so zero disables retrying.
func (c Config) RetryPolicy() *crawler.ExponentialRetryPolicy {
	return crawler.NewExponentialRetryPolicy(
		c.HTTP.MaxRetries+1,
		time.Duration(c.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs)*time.Millisecond,
	)
}

// LoggingOptions converts the logging section for logging.New.
func (c Config) LoggingOptions() logging.Options {
	return logging.Options{Development: c.Logging.Development, Level: c.Logging.Level}
}

// RecordStoreConfig converts the DB settings for the Postgres sink.
func (c Config) RecordStoreConfig(runID string) postgres.RecordStoreConfig {
	return postgres.RecordStoreConfig{
		DSN:             c.DB.DSN,
		Table:           c.DB.Table,
		MaxConns:        c.DB.MaxConns,
		MinConns:        c.DB.MinConns,
		MaxConnLifetime: time.Duration(c.DB.MaxConnLifetimeSeconds) * time.Second,
		RunID:           runID,
	}
}
