// Package app initializes and holds long-lived pipeline services, acting as a
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/coffee-map-sync/internal/cache"
	"github.com/JakeFAU/coffee-map-sync/internal/clock/system"
	"github.com/JakeFAU/coffee-map-sync/internal/config"
	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
	collyfetcher "github.com/JakeFAU/coffee-map-sync/internal/fetcher/colly"
	"github.com/JakeFAU/coffee-map-sync/internal/fetcher/retrying"
	"github.com/JakeFAU/coffee-map-sync/internal/geocode"
	"github.com/JakeFAU/coffee-map-sync/internal/hash/sha256"
	"github.com/JakeFAU/coffee-map-sync/internal/id/uuid"
	"github.com/JakeFAU/coffee-map-sync/internal/logging"
	"github.com/JakeFAU/coffee-map-sync/internal/metrics"
	googleplaces "github.com/JakeFAU/coffee-map-sync/internal/places/google"
	"github.com/JakeFAU/coffee-map-sync/internal/policy/ratelimit"
	"github.com/JakeFAU/coffee-map-sync/internal/scrape"
	"github.com/JakeFAU/coffee-map-sync/internal/snapshot"
	"github.com/JakeFAU/coffee-map-sync/internal/storage/gcs"
	"github.com/JakeFAU/coffee-map-sync/internal/storage/local"
)

// ErrNoSnapshot is returned by Geocode when nothing has been scraped yet.
var ErrNoSnapshot = errors.New("no scraped list found; run scrape first")

// App holds the shared services of one command invocation.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string

	clock     crawler.Clock
	hasher    crawler.Hasher
	pauser    crawler.Pauser
	pacer     crawler.Pacer
	transport http.RoundTripper
	searcher  crawler.PlaceSearcher
	gcsOpts   []option.ClientOption

	closers []func() error
}

// ScrapeReport is the outcome of a scrape run.
type ScrapeReport struct {
	Scrape   scrape.ScrapeResult
	Snapshot snapshot.Result
	// Saved is false when a list failure kept the previous snapshot in place.
	Saved bool
}

// SyncReport is the outcome of scrape followed by geocode.
type SyncReport struct {
	Scrape  ScrapeReport
	Geocode geocode.EnrichReport
}

// Option customizes New.
type Option func(*App)

// WithLogger replaces the logger built from config.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithClock replaces the system clock.
func WithClock(clock crawler.Clock) Option {
	return func(a *App) { a.clock = clock }
}

// WithPauser replaces the retry backoff sleeper.
func WithPauser(pauser crawler.Pauser) Option {
	return func(a *App) { a.pauser = pauser }
}

// WithPacer replaces the per-host politeness limiter.
func WithPacer(pacer crawler.Pacer) Option {
	return func(a *App) { a.pacer = pacer }
}

// WithTransport routes page fetches through rt.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *App) { a.transport = rt }
}

// WithPlaceSearcher replaces the Google Places client.
func WithPlaceSearcher(searcher crawler.PlaceSearcher) Option {
	return func(a *App) { a.searcher = searcher }
}

// WithGCSOptions passes client options to the GCS cache backend.
func WithGCSOptions(opts ...option.ClientOption) Option {
	return func(a *App) { a.gcsOpts = append(a.gcsOpts, opts...) }
}

// New builds the container for one run. command labels every log entry.
func New(cfg config.Config, command string, opts ...Option) (*App, error) {
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:    cfg,
		runID:  runID,
		clock:  system.New(),
		hasher: sha256.New(),
		pauser: crawler.TimerPauser{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		logger, err := logging.New(logging.Options{
			Development: cfg.Logging.Development,
			RunID:       runID,
			Command:     command,
		})
		if err != nil {
			return nil, err
		}
		a.logger = logger
	}
	if a.pacer == nil {
		a.pacer = ratelimit.New(ratelimit.Config{MinInterval: cfg.Scrape.DetailDelay, Burst: 1})
	}
	metrics.Init()
	return a, nil
}

// Logger returns the run logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// RunID returns the UUIDv7 identifying this invocation.
func (a *App) RunID() string {
	return a.runID
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Scrape fetches every configured list and writes the snapshot. When a list
// page is unavailable the partial result is returned with the error and the
// previous snapshot is left untouched.
func (a *App) Scrape(ctx context.Context) (ScrapeReport, error) {
	coordinator, err := a.newCoordinator()
	if err != nil {
		return ScrapeReport{}, err
	}
	result, scrapeErr := coordinator.ScrapeAll(ctx)
	report := ScrapeReport{Scrape: result}
	if scrapeErr != nil {
		a.logger.Error("scrape incomplete, keeping previous snapshot", zap.Error(scrapeErr))
		return report, scrapeErr
	}

	store, err := a.snapshotStore()
	if err != nil {
		return report, err
	}
	report.Snapshot, err = store.Save(ctx, result.Records)
	if err != nil {
		return report, err
	}
	report.Saved = true
	return report, nil
}

// Geocode enriches raws through the cache. A nil raws reads the last snapshot.
func (a *App) Geocode(ctx context.Context, raws []crawler.RawRecord) (geocode.EnrichReport, error) {
	if err := a.cfg.RequireGeocodeKey(); err != nil && a.searcher == nil {
		return geocode.EnrichReport{}, err
	}
	if raws == nil {
		store, err := a.snapshotStore()
		if err != nil {
			return geocode.EnrichReport{}, err
		}
		raws, err = store.Load(ctx)
		if err != nil {
			return geocode.EnrichReport{}, err
		}
		if len(raws) == 0 {
			return geocode.EnrichReport{}, ErrNoSnapshot
		}
	}

	enrichmentCache, err := a.openCache(ctx)
	if err != nil {
		return geocode.EnrichReport{}, err
	}
	geocoder, err := a.newGeocoder()
	if err != nil {
		return geocode.EnrichReport{}, err
	}
	report, err := geocoder.Enrich(ctx, raws, enrichmentCache)
	a.logger.Info("geocode complete",
		zap.Int("records", len(report.Records)),
		zap.Int("calls", report.Calls),
		zap.Int("resolved", report.Resolved),
		zap.Int("cache_hits", report.CacheHits),
		zap.Int("unresolved", report.Unresolved),
		zap.Int("low_confidence", report.LowConfidence),
		zap.Int("deferred", report.Deferred),
		zap.Bool("quota_hit", report.QuotaHit),
		zap.Int("cache_entries", enrichmentCache.Len()))
	return report, err
}

// Sync scrapes and then enriches the fresh records. Geocoding is skipped
// when the scrape is incomplete.
func (a *App) Sync(ctx context.Context) (SyncReport, error) {
	scraped, err := a.Scrape(ctx)
	report := SyncReport{Scrape: scraped}
	if err != nil {
		return report, err
	}
	records := scraped.Scrape.Records
	if records == nil {
		records = []crawler.RawRecord{}
	}
	report.Geocode, err = a.Geocode(ctx, records)
	return report, err
}

// Close releases backends, dumps metrics and flushes the logger.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		errs = append(errs, err)
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *App) newCoordinator() (*scrape.Coordinator, error) {
	collyCfg := collyfetcher.Config{
		UserAgent:     a.cfg.Scrape.UserAgent,
		RespectRobots: a.cfg.Scrape.RespectRobots,
		Timeout:       a.cfg.Scrape.RequestTimeout,
	}
	var base crawler.Fetcher
	if a.transport != nil {
		base = collyfetcher.NewWithTransport(collyCfg, a.transport)
	} else {
		base = collyfetcher.New(collyCfg)
	}
	fetcher := retrying.New(base, a.cfg.RetryPolicy(), a.pauser, a.logger)
	return scrape.New(fetcher, a.pacer, scrape.Config{
		Sources:            a.cfg.Sources,
		DetailPrefixes:     a.cfg.Scrape.DetailPathPrefixes,
		ParallelCategories: a.cfg.Scrape.ParallelCategories,
	}, a.logger)
}

func (a *App) snapshotStore() (*snapshot.Store, error) {
	blobs, object, err := localStore(a.cfg.Snapshot.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return snapshot.New(blobs, object, a.hasher, a.logger)
}

func (a *App) openCache(ctx context.Context) (*cache.Cache, error) {
	var (
		blobs  crawler.BlobStore
		object string
	)
	switch a.cfg.Cache.Backend {
	case config.BackendGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: a.cfg.Cache.GCSBucket}, a.gcsOpts...)
		if err != nil {
			return nil, fmt.Errorf("open gcs cache: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		blobs, object = store, a.cfg.Cache.GCSObject
	default:
		store, name, err := localStore(a.cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open local cache: %w", err)
		}
		blobs, object = store, name
	}

	c, err := cache.New(blobs, object, cache.WithClock(a.clock), cache.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *App) newGeocoder() (*geocode.Geocoder, error) {
	searcher := a.searcher
	if searcher == nil {
		client, err := googleplaces.New(googleplaces.Config{
			APIKey:   a.cfg.Geocode.APIKey,
			Endpoint: a.cfg.Geocode.Endpoint,
			Timeout:  a.cfg.Geocode.Timeout,
			Retries:  a.cfg.Geocode.Retries,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		searcher = client
	}
	return geocode.New(searcher, geocode.Config{
		Quota:      a.cfg.Geocode.Quota,
		Force:      a.cfg.Geocode.ForceRefresh,
		VenueTypes: a.cfg.Geocode.VenueTypes,
	}, a.clock, a.logger)
}

// localStore roots a filesystem store at the directory of path and returns
// the object name inside it.
func localStore(path string) (*local.BlobStore, string, error) {
	store, err := local.New(local.Config{BaseDir: filepath.Dir(path)})
	if err != nil {
		return nil, "", err
	}
	return store, filepath.Base(path), nil
}
