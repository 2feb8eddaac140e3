package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("expected two default sources, got %+v", cfg.Sources)
	}
	if cfg.Sources[1].Category != crawler.CategorySouthAmerica {
		t.Fatalf("expected second source to be South America, got %q", cfg.Sources[1].Category)
	}
	if cfg.Scrape.DetailDelay != time.Second {
		t.Fatalf("expected 1s detail delay, got %v", cfg.Scrape.DetailDelay)
	}
	policy := cfg.RetryPolicy()
	if policy.MaxAttempts != 3 || policy.BaseDelay != 2*time.Second || policy.Multiplier != 2 {
		t.Fatalf("unexpected retry policy %+v", policy)
	}
	if cfg.Geocode.Quota != 200 {
		t.Fatalf("expected quota 200, got %d", cfg.Geocode.Quota)
	}
	if cfg.Cache.Backend != BackendLocal || cfg.Cache.Path != "data/enrichment_cache.json" {
		t.Fatalf("unexpected cache config %+v", cfg.Cache)
	}
	if err := cfg.RequireGeocodeKey(); err == nil {
		t.Fatal("expected missing api key to be reported")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
sources:
  - category: south
    url: https://example.com/south/
scrape:
  user_agent: coffee-bot
  request_timeout: 5s
  detail_delay: 3s
  parallel_categories: true
retry:
  max_attempts: 5
  base_delay: 500ms
geocode:
  api_key: secret
  quota: 10
  force_refresh: true
  venue_types: [cafe]
cache:
  backend: gcs
  gcs_bucket: coffee-cache
snapshot:
  path: out/list.json
metrics:
  textfile: out/coffeemap.prom
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Development {
		t.Fatal("expected development logging disabled")
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Category != crawler.CategorySouthAmerica {
		t.Fatalf("expected one normalized source, got %+v", cfg.Sources)
	}
	if cfg.Scrape.UserAgent != "coffee-bot" || cfg.Scrape.DetailDelay != 3*time.Second || !cfg.Scrape.ParallelCategories {
		t.Fatalf("expected scrape overrides to apply: %+v", cfg.Scrape)
	}
	if got := cfg.RetryPolicy(); got.MaxAttempts != 5 || got.BaseDelay != 500*time.Millisecond {
		t.Fatalf("expected retry overrides to apply: %+v", got)
	}
	if cfg.Geocode.Quota != 10 || !cfg.Geocode.ForceRefresh || len(cfg.Geocode.VenueTypes) != 1 {
		t.Fatalf("expected geocode overrides to apply: %+v", cfg.Geocode)
	}
	if err := cfg.RequireGeocodeKey(); err != nil {
		t.Fatalf("RequireGeocodeKey() error = %v", err)
	}
	if cfg.Cache.Backend != BackendGCS || cfg.Cache.GCSObject != "enrichment_cache.json" {
		t.Fatalf("expected gcs backend with default object: %+v", cfg.Cache)
	}
	if cfg.Metrics.Textfile != "out/coffeemap.prom" {
		t.Fatalf("expected metrics textfile, got %q", cfg.Metrics.Textfile)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("COFFEEMAP_GEOCODE_API_KEY", "from-env")
	t.Setenv("COFFEEMAP_GEOCODE_QUOTA", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Geocode.APIKey != "from-env" || cfg.Geocode.Quota != 7 {
		t.Fatalf("expected env overrides, got %+v", cfg.Geocode)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"no sources", func(c *Config) { c.Sources = nil }, "sources"},
		{"relative source url", func(c *Config) {
			c.Sources = []crawler.Source{{Category: crawler.CategoryTop100, URL: "/top-100/"}}
		}, "sources[0].url"},
		{"missing category", func(c *Config) {
			c.Sources = []crawler.Source{{URL: "https://example.com/"}}
		}, "sources[0].category"},
		{"zero timeout", func(c *Config) { c.Scrape.RequestTimeout = 0 }, "scrape.request_timeout"},
		{"impolite delay", func(c *Config) { c.Scrape.DetailDelay = 200 * time.Millisecond }, "scrape.detail_delay"},
		{"no attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"shrinking backoff", func(c *Config) { c.Retry.Multiplier = 0.5 }, "retry.multiplier"},
		{"negative quota", func(c *Config) { c.Geocode.Quota = -1 }, "geocode.quota"},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "s3" }, "cache.backend"},
		{"gcs without bucket", func(c *Config) { c.Cache.Backend = BackendGCS }, "cache.gcs_bucket"},
		{"no snapshot path", func(c *Config) { c.Snapshot.Path = "" }, "snapshot.path"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Sources = append([]crawler.Source(nil), base.Sources...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
