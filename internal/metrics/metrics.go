// Package metrics exposes Prometheus collectors for the scrape and geocode pipeline.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry *prometheus.Registry

	fetchAttemptsTotal     *prometheus.CounterVec
	fetchRetriesTotal      *prometheus.CounterVec
	fetchDurationSeconds   *prometheus.HistogramVec
	pagesParsedTotal       *prometheus.CounterVec
	parseDegradationsTotal *prometheus.CounterVec
	rankGapsTotal          *prometheus.CounterVec
	geocodeLookupsTotal    *prometheus.CounterVec
	cacheHitsTotal         prometheus.Counter
	cacheFlushesTotal      *prometheus.CounterVec
	paceDelaySeconds       *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors on a dedicated registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		fetchAttemptsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffeemap_fetch_attempts_total",
				Help: "Total number of HTTP fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)
		fetchRetriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffeemap_fetch_retries_total",
				Help: "Total number of fetch retries scheduled after a transient failure.",
			},
			[]string{"site"},
		)
		fetchDurationSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coffeemap_fetch_duration_seconds",
				Help:    "Histogram of single fetch attempt latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"site"},
		)
		pagesParsedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffeemap_pages_parsed_total",
				Help: "Total number of pages parsed, labeled by page kind and category.",
			},
			[]string{"kind", "category"},
		)
		parseDegradationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffeemap_parse_degradations_total",
				Help: "Fields or entries that fell back to a placeholder, labeled by reason.",
			},
			[]string{"category", "reason"},
		)
		rankGapsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffeemap_rank_gaps_total",
				Help: "Ranks missing from a scraped list.",
			},
			[]string{"category"},
		)
		geocodeLookupsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffeemap_geocode_lookups_total",
				Help: "External place lookups issued, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		cacheHitsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "coffeemap_cache_hits_total",
				Help: "Records served from the enrichment cache without a lookup.",
			},
		)
		cacheFlushesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffeemap_cache_flushes_total",
				Help: "Cache persistence attempts, labeled by status.",
			},
			[]string{"status"},
		)
		paceDelaySeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coffeemap_pace_delay_seconds",
				Help:    "Histogram of politeness wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		registry.MustRegister(
			fetchAttemptsTotal,
			fetchRetriesTotal,
			fetchDurationSeconds,
			pagesParsedTotal,
			parseDegradationsTotal,
			rankGapsTotal,
			geocodeLookupsTotal,
			cacheHitsTotal,
			cacheFlushesTotal,
			paceDelaySeconds,
		)
	})
}

// Registry returns the registry holding every pipeline collector.
func Registry() *prometheus.Registry {
	Init()
	return registry
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, Registry()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records one fetch attempt.
func ObserveFetch(rawURL string, outcome string, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	fetchAttemptsTotal.WithLabelValues(site, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveRetry records a scheduled retry.
func ObserveRetry(rawURL string) {
	Init()
	fetchRetriesTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObservePageParsed records a parsed list or detail page.
func ObservePageParsed(kind string, category string) {
	Init()
	pagesParsedTotal.WithLabelValues(kind, category).Inc()
}

// ObserveDegradation records a placeholder fallback or skipped entry.
func ObserveDegradation(category string, reason string, n int) {
	Init()
	if n <= 0 {
		return
	}
	parseDegradationsTotal.WithLabelValues(category, reason).Add(float64(n))
}

// ObserveRankGaps records the number of ranks missing from a category.
func ObserveRankGaps(category string, n int) {
	Init()
	if n <= 0 {
		return
	}
	rankGapsTotal.WithLabelValues(category).Add(float64(n))
}

// ObserveLookup records one external lookup by outcome.
func ObserveLookup(outcome string) {
	Init()
	geocodeLookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCacheHit records a record served from the cache.
func ObserveCacheHit() {
	Init()
	cacheHitsTotal.Inc()
}

// ObserveCacheFlush records a cache save.
func ObserveCacheFlush(status string) {
	Init()
	cacheFlushesTotal.WithLabelValues(status).Inc()
}

// ObservePaceDelay records the duration of a politeness wait.
func ObservePaceDelay(domain string, duration time.Duration) {
	Init()
	paceDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
