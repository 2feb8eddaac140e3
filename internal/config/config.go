// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
)

// Cache backends.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// MinDetailDelay is the smallest spacing allowed between requests to the list site.
const MinDetailDelay = time.Second

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig    `mapstructure:"logging"`
	Sources  []crawler.Source `mapstructure:"sources"`
	Scrape   ScrapeConfig     `mapstructure:"scrape"`
	Retry    RetryConfig      `mapstructure:"retry"`
	Geocode  GeocodeConfig    `mapstructure:"geocode"`
	Cache    CacheConfig      `mapstructure:"cache"`
	Snapshot SnapshotConfig   `mapstructure:"snapshot"`
	Metrics  MetricsConfig    `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScrapeConfig governs list and detail retrieval.
type ScrapeConfig struct {
	UserAgent          string        `mapstructure:"user_agent"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	DetailDelay        time.Duration `mapstructure:"detail_delay"`
	DetailPathPrefixes []string      `mapstructure:"detail_path_prefixes"`
	ParallelCategories bool          `mapstructure:"parallel_categories"`
	RespectRobots      bool          `mapstructure:"respect_robots"`
}

// RetryConfig configures page fetch retries.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// GeocodeConfig configures the place lookup client and quota.
type GeocodeConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	Quota        int           `mapstructure:"quota"`
	ForceRefresh bool          `mapstructure:"force_refresh"`
	Endpoint     string        `mapstructure:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
	VenueTypes   []string      `mapstructure:"venue_types"`
}

// CacheConfig selects where the enrichment cache lives.
type CacheConfig struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSObject string `mapstructure:"gcs_object"`
}

// SnapshotConfig sets where the latest scraped list is written.
type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig controls the textfile dump written at the end of a run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COFFEEMAP")
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
	for i := range cfg.Sources {
		cfg.Sources[i].Category = crawler.NormalizeCategory(string(cfg.Sources[i].Category))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("sources", []map[string]any{
		{"category": string(crawler.CategoryTop100), "url": "https://theworlds100bestcoffeeshops.com/top-100-coffee-shops/"},
		{"category": string(crawler.CategorySouthAmerica), "url": "https://theworlds100bestcoffeeshops.com/top-coffee-shops-south/"},
	})
	v.SetDefault("scrape.user_agent", defaultUserAgent)
	v.SetDefault("scrape.request_timeout", 15*time.Second)
	v.SetDefault("scrape.detail_delay", time.Second)
	v.SetDefault("scrape.detail_path_prefixes", []string{"/locales/", "/locales-south/"})
	v.SetDefault("scrape.parallel_categories", false)
	v.SetDefault("scrape.respect_robots", false)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 2*time.Second)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("geocode.api_key", "")
	v.SetDefault("geocode.quota", 200)
	v.SetDefault("geocode.force_refresh", false)
	v.SetDefault("geocode.endpoint", "https://maps.googleapis.com/maps/api/place/findplacefromtext/json")
	v.SetDefault("geocode.timeout", 30*time.Second)
	v.SetDefault("geocode.retries", 2)
	v.SetDefault("geocode.venue_types", []string{"cafe", "restaurant", "bakery", "food", "bar", "meal_takeaway"})
	v.SetDefault("cache.backend", BackendLocal)
	v.SetDefault("cache.path", "data/enrichment_cache.json")
	v.SetDefault("cache.gcs_bucket", "")
	v.SetDefault("cache.gcs_object", "enrichment_cache.json")
	v.SetDefault("snapshot.path", "data/current_list.json")
	v.SetDefault("metrics.textfile", "")
}

// Validate enforces required values and reasonable limits. The geocode API
// key is checked separately by RequireGeocodeKey since scraping never needs it.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("sources must list at least one page")
	}
	for i, src := range c.Sources {
		if src.Category == "" {
			return fmt.Errorf("sources[%d].category is required", i)
		}
		u, err := url.Parse(src.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("sources[%d].url must be an absolute http(s) URL, got %q", i, src.URL)
		}
	}
	if c.Scrape.RequestTimeout <= 0 {
		return fmt.Errorf("scrape.request_timeout must be > 0")
	}
	if c.Scrape.DetailDelay < MinDetailDelay {
		return fmt.Errorf("scrape.detail_delay must be at least %s", MinDetailDelay)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}
	if c.Geocode.Quota < 0 {
		return fmt.Errorf("geocode.quota must be >= 0")
	}
	if c.Geocode.Timeout <= 0 {
		return fmt.Errorf("geocode.timeout must be > 0")
	}
	if c.Geocode.Retries < 0 {
		return fmt.Errorf("geocode.retries must be >= 0")
	}
	switch c.Cache.Backend {
	case BackendLocal:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the local backend")
		}
	case BackendGCS:
		if c.Cache.GCSBucket == "" || c.Cache.GCSObject == "" {
			return fmt.Errorf("cache.gcs_bucket and cache.gcs_object are required for the gcs backend")
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", BackendLocal, BackendGCS, c.Cache.Backend)
	}
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path is required")
	}
	return nil
}

// RequireGeocodeKey reports a missing place lookup credential.
func (c Config) RequireGeocodeKey() error {
	if strings.TrimSpace(c.Geocode.APIKey) == "" {
		return fmt.Errorf("geocode.api_key must be set (env COFFEEMAP_GEOCODE_API_KEY)")
	}
	return nil
}

// RetryPolicy converts the retry keys into a fetch policy.
func (c Config) RetryPolicy() crawler.RetryPolicy {
	return crawler.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		Multiplier:  c.Retry.Multiplier,
		MaxDelay:    c.Retry.MaxDelay,
	}
}
