// Package scrape drives list and detail retrieval for every configured source.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
	"github.com/JakeFAU/coffee-map-sync/internal/metrics"
	"github.com/JakeFAU/coffee-map-sync/internal/parser"
)

// Config controls a scrape run.
type Config struct {
	Sources            []crawler.Source
	DetailPrefixes     []string
	ParallelCategories bool
	Headers            http.Header
}

// CategoryReport summarizes one source.
type CategoryReport struct {
	Category         crawler.Category
	SourceURL        string
	Records          int
	Skipped          int
	Degraded         int
	DetailFailures   int
	AddressesMissing int
	CitiesMissing    int
	MaxRank          int
	MissingRanks     []int
	Warnings         []string
	Err              error
}

// ScrapeResult holds every record plus per-category reports, in source order.
type ScrapeResult struct {
	Records    []crawler.RawRecord
	Categories []CategoryReport
}

// Summary totals the per-category counters.
type Summary struct {
	Records          int
	Skipped          int
	Degraded         int
	DetailFailures   int
	AddressesMissing int
	RankGaps         int
	FailedCategories int
}

// Summary aggregates the category reports.
func (r ScrapeResult) Summary() Summary {
	var s Summary
	s.Records = len(r.Records)
	for _, c := range r.Categories {
		s.Skipped += c.Skipped
		s.Degraded += c.Degraded
		s.DetailFailures += c.DetailFailures
		s.AddressesMissing += c.AddressesMissing
		s.RankGaps += len(c.MissingRanks)
		if c.Err != nil {
			s.FailedCategories++
		}
	}
	return s
}

// Coordinator fetches list pages, then each detail page, through a single
// Fetcher. Every request waits on the pacer first, so requests to one host are
// always spaced by the pacer's interval.
type Coordinator struct {
	fetcher crawler.Fetcher
	pacer   crawler.Pacer
	cfg     Config
	list    *parser.ListParser
	logger  *zap.Logger
}

// New builds a Coordinator.
func New(fetcher crawler.Fetcher, pacer crawler.Pacer, cfg Config, logger *zap.Logger) (*Coordinator, error) {
	if fetcher == nil {
		return nil, errors.New("scrape: fetcher is required")
	}
	if pacer == nil {
		return nil, errors.New("scrape: pacer is required")
	}
	if len(cfg.Sources) == 0 {
		return nil, errors.New("scrape: at least one source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	listURLs := make([]string, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		listURLs = append(listURLs, src.URL)
	}
	return &Coordinator{
		fetcher: fetcher,
		pacer:   pacer,
		cfg:     cfg,
		list:    parser.NewListParser(cfg.DetailPrefixes, listURLs),
		logger:  logger.Named("scrape"),
	}, nil
}

// ScrapeAll scrapes every source. A list page that cannot be fetched fails
// its category; the remaining categories still run, and the returned error
// wraps crawler.ErrListUnavailable once per failed category alongside the
// partial result.
func (c *Coordinator) ScrapeAll(ctx context.Context) (ScrapeResult, error) {
	reports := make([]CategoryReport, len(c.cfg.Sources))
	records := make([][]crawler.RawRecord, len(c.cfg.Sources))

	run := func(i int) {
		reports[i], records[i] = c.ScrapeCategory(ctx, c.cfg.Sources[i])
	}
	if c.cfg.ParallelCategories {
		var g errgroup.Group
		for i := range c.cfg.Sources {
			i := i
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range c.cfg.Sources {
			run(i)
			if ctx.Err() != nil {
				break
			}
		}
	}

	result := ScrapeResult{Categories: make([]CategoryReport, 0, len(reports))}
	var errs []error
	for i, report := range reports {
		if report.Category == "" {
			// Not reached because the context ended first.
			continue
		}
		result.Categories = append(result.Categories, report)
		result.Records = append(result.Records, records[i]...)
		if report.Err != nil {
			errs = append(errs, report.Err)
		}
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, fmt.Errorf("scrape canceled: %w", err))
	}

	s := result.Summary()
	c.logger.Info("scrape complete",
		zap.Int("records", s.Records),
		zap.Int("skipped", s.Skipped),
		zap.Int("degraded", s.Degraded),
		zap.Int("detail_failures", s.DetailFailures),
		zap.Int("addresses_missing", s.AddressesMissing),
		zap.Int("rank_gaps", s.RankGaps),
		zap.Int("failed_categories", s.FailedCategories))
	return result, errors.Join(errs...)
}

// ScrapeCategory scrapes one source. Detail failures degrade single records;
// only a list failure or cancellation sets the report error.
func (c *Coordinator) ScrapeCategory(ctx context.Context, src crawler.Source) (CategoryReport, []crawler.RawRecord) {
	category := crawler.NormalizeCategory(string(src.Category))
	report := CategoryReport{Category: category, SourceURL: src.URL, MissingRanks: []int{}}
	logger := c.logger.With(zap.String("category", string(category)))

	logger.Info("scraping list", zap.String("url", src.URL))
	page, err := c.fetchList(ctx, src, category)
	if err != nil {
		report.Err = err
		logger.Error("list page unavailable", zap.String("url", src.URL), zap.Error(err))
		return report, nil
	}
	report.Skipped = page.Skipped
	report.Degraded = page.Degraded
	report.Warnings = append(report.Warnings, page.Warnings...)
	for _, w := range page.Warnings {
		logger.Warn("list degradation", zap.String("detail", w))
	}
	metrics.ObserveDegradation(string(category), "list_skipped", page.Skipped)
	metrics.ObserveDegradation(string(category), "list_degraded", page.Degraded)
	if len(page.Records) == 0 {
		logger.Error("list page produced no entries", zap.String("url", src.URL))
	} else {
		logger.Info("list parsed", zap.Int("entries", len(page.Records)))
	}

	records := page.Records
	for i := range records {
		rec := &records[i]
		if err := c.pacer.Wait(ctx, rec.DetailURL); err != nil {
			report.Err = fmt.Errorf("%s: pacing before %s: %w", category, rec.DetailURL, err)
			return c.finish(report, records[:i], logger), records[:i]
		}
		c.fillDetail(ctx, rec, &report, logger)
		if ctx.Err() != nil {
			report.Err = fmt.Errorf("%s: %w", category, ctx.Err())
			return c.finish(report, records[:i+1], logger), records[:i+1]
		}
	}
	return c.finish(report, records, logger), records
}

func (c *Coordinator) fetchList(ctx context.Context, src crawler.Source, category crawler.Category) (parser.ListPage, error) {
	if err := c.pacer.Wait(ctx, src.URL); err != nil {
		return parser.ListPage{}, fmt.Errorf("%s: %w: %w", category, crawler.ErrListUnavailable, err)
	}
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{URL: src.URL, Headers: c.cfg.Headers})
	if err != nil {
		return parser.ListPage{}, fmt.Errorf("%s: %w: %w", category, crawler.ErrListUnavailable, err)
	}
	doc, err := parser.NewDocument(resp.Body)
	if err != nil {
		return parser.ListPage{}, fmt.Errorf("%s: %w: %w", category, crawler.ErrListUnavailable, err)
	}
	baseURL := resp.URL
	if baseURL == "" {
		baseURL = src.URL
	}
	page, err := c.list.Parse(doc, baseURL, category)
	if err != nil {
		return parser.ListPage{}, fmt.Errorf("%s: %w: %w", category, crawler.ErrListUnavailable, err)
	}
	metrics.ObservePageParsed("list", string(category))
	return page, nil
}

// fillDetail fetches and parses the detail page of rec. Failures leave the
// placeholders in place.
func (c *Coordinator) fillDetail(ctx context.Context, rec *crawler.RawRecord, report *CategoryReport, logger *zap.Logger) {
	fields := []zap.Field{zap.Int("rank", rec.Rank), zap.String("name", rec.Name), zap.String("url", rec.DetailURL)}

	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{URL: rec.DetailURL, Headers: c.cfg.Headers})
	if err != nil {
		c.degradeDetail(rec, report, fmt.Sprintf("detail fetch failed for %q: %v", rec.Name, err))
		logger.Warn("detail fetch failed", append(fields, zap.Error(err))...)
		return
	}
	doc, err := parser.NewDocument(resp.Body)
	if err != nil {
		c.degradeDetail(rec, report, fmt.Sprintf("detail parse failed for %q: %v", rec.Name, err))
		logger.Warn("detail parse failed", append(fields, zap.Error(err))...)
		return
	}
	detail := parser.ParseDetail(doc)
	detail.Apply(rec)
	metrics.ObservePageParsed("detail", string(rec.Category))

	if !detail.AddressFound {
		report.AddressesMissing++
		metrics.ObserveDegradation(string(rec.Category), "address_missing", 1)
		logger.Warn("address not found", fields...)
	}
	if detail.City == nil {
		report.CitiesMissing++
		metrics.ObserveDegradation(string(rec.Category), "city_missing", 1)
	}
	logger.Info("entry scraped",
		zap.Int("rank", rec.Rank),
		zap.String("name", rec.Name),
		zap.String("city", rec.CityOrEmpty()),
		zap.String("country", rec.Country),
		zap.String("strategy", detail.Strategy))
}

func (c *Coordinator) degradeDetail(rec *crawler.RawRecord, report *CategoryReport, warning string) {
	rec.City = nil
	rec.Address = crawler.AddressNotFound
	report.DetailFailures++
	report.AddressesMissing++
	report.CitiesMissing++
	report.Warnings = append(report.Warnings, warning)
	metrics.ObserveDegradation(string(rec.Category), "detail_failed", 1)
}

func (c *Coordinator) finish(report CategoryReport, records []crawler.RawRecord, logger *zap.Logger) CategoryReport {
	report.Records = len(records)
	report.MaxRank = crawler.MaxRank(records)
	report.MissingRanks = crawler.MissingRanks(crawler.Ranks(records), report.MaxRank)
	if len(report.MissingRanks) > 0 {
		metrics.ObserveRankGaps(string(report.Category), len(report.MissingRanks))
		logger.Warn("rank gaps detected",
			zap.Ints("missing_ranks", report.MissingRanks),
			zap.Int("max_rank", report.MaxRank))
	}
	return report
}
