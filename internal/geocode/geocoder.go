// Package geocode resolves scraped records to coordinates and place
// identifiers through a quota-limited lookup, consulting the enrichment cache
// first.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/coffee-map-sync/internal/clock/system"
	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
	"github.com/JakeFAU/coffee-map-sync/internal/metrics"
)

// DefaultQuota bounds external lookups per run.
const DefaultQuota = 200

// Outcome classifies what happened to one record.
type Outcome string

// Record outcomes.
const (
	OutcomeCached        Outcome = "cached"
	OutcomeResolved      Outcome = "resolved"
	OutcomeLowConfidence Outcome = "low_confidence"
	OutcomeNoMatch       Outcome = "no_match"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeFailed        Outcome = "failed"
	OutcomeDeferred      Outcome = "deferred"
)

// Store is the cache surface the geocoder needs.
type Store interface {
	Lookup(id crawler.Identity) (crawler.EnrichedRecord, bool)
	Put(rec crawler.EnrichedRecord) crawler.EnrichedRecord
	Flush(ctx context.Context) error
}

// Config controls quota and refresh policy.
type Config struct {
	// Quota is the maximum number of external lookups in one run. Zero defers everything.
	Quota int
	// Force re-resolves entries that already carry a place identifier.
	Force bool
	// VenueTypes are the place types accepted without a low-confidence flag.
	VenueTypes []string
}

// Warning is a per-record anomaly surfaced in the report.
type Warning struct {
	Key     string
	Outcome Outcome
	Message string
}

// EnrichReport summarizes a run. Records are in input order.
type EnrichReport struct {
	Records       []crawler.EnrichedRecord
	Outcomes      []Outcome
	Calls         int
	Resolved      int
	CacheHits     int
	Unresolved    int
	LowConfidence int
	Deferred      int
	QuotaHit      bool
	Warnings      []Warning
}

// Geocoder enriches records.
type Geocoder struct {
	searcher crawler.PlaceSearcher
	cfg      Config
	venues   venueSet
	clock    crawler.Clock
	logger   *zap.Logger
}

// New builds a Geocoder. A nil clock uses the system clock.
func New(searcher crawler.PlaceSearcher, cfg Config, clock crawler.Clock, logger *zap.Logger) (*Geocoder, error) {
	if searcher == nil {
		return nil, errors.New("geocode: place searcher is required")
	}
	if cfg.Quota < 0 {
		return nil, fmt.Errorf("geocode: quota must not be negative (got %d)", cfg.Quota)
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Geocoder{
		searcher: searcher,
		cfg:      cfg,
		venues:   newVenueSet(cfg.VenueTypes),
		clock:    clock,
		logger:   logger.Named("geocoder"),
	}, nil
}

// Enrich resolves each record in order. Cached resolutions are reused without
// a call; the rest are looked up until the quota is spent, after which they
// pass through unresolved. Every outcome is written to store, which is
// flushed after each external call so an interrupted run keeps its progress.
// Only a rejected credential or a store failure aborts.
func (g *Geocoder) Enrich(ctx context.Context, raws []crawler.RawRecord, store Store) (EnrichReport, error) {
	if store == nil {
		return EnrichReport{}, errors.New("geocode: store is required")
	}
	report := EnrichReport{
		Records:  make([]crawler.EnrichedRecord, 0, len(raws)),
		Outcomes: make([]Outcome, 0, len(raws)),
	}

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("enrich canceled: %w", err)
		}
		id := raw.Identity()
		key := id.Key()

		if cached, ok := store.Lookup(id); ok && cached.Resolved() && !g.cfg.Force {
			rec := store.Put(crawler.Unenriched(raw))
			metrics.ObserveCacheHit()
			report.CacheHits++
			report.add(rec, OutcomeCached)
			continue
		}

		if report.QuotaHit || report.Calls >= g.cfg.Quota {
			rec := store.Put(crawler.Unenriched(raw))
			report.Deferred++
			report.add(rec, OutcomeDeferred)
			continue
		}

		query := BuildQuery(raw)
		report.Calls++
		candidates, err := g.searcher.FindPlace(ctx, query)
		if err != nil {
			switch {
			case errors.Is(err, crawler.ErrCredentialRejected):
				metrics.ObserveLookup("denied")
				g.logger.Error("lookup credential rejected", zap.Error(err))
				if flushErr := store.Flush(ctx); flushErr != nil {
					return report, fmt.Errorf("flush cache: %w", flushErr)
				}
				return report, fmt.Errorf("lookup %q: %w", key, err)
			case errors.Is(err, crawler.ErrQuotaExhausted):
				metrics.ObserveLookup("quota")
				g.logger.Warn("upstream quota exhausted, deferring remaining records",
					zap.String("key", key), zap.Error(err))
				report.QuotaHit = true
				rec := store.Put(crawler.Unenriched(raw))
				report.Deferred++
				report.add(rec, OutcomeDeferred)
			case ctx.Err() != nil:
				return report, fmt.Errorf("lookup %q: %w", key, ctx.Err())
			default:
				metrics.ObserveLookup("error")
				rec := store.Put(crawler.Unenriched(raw))
				report.Unresolved++
				report.warn(key, OutcomeFailed, fmt.Sprintf("lookup failed: %v", err))
				report.add(rec, OutcomeFailed)
				g.logger.Warn("lookup failed", zap.String("key", key), zap.String("query", query), zap.Error(err))
			}
			if err := store.Flush(ctx); err != nil {
				return report, fmt.Errorf("flush cache: %w", err)
			}
			continue
		}

		rec, outcome, msg := g.resolve(raw, candidates)
		stored := store.Put(rec)
		metrics.ObserveLookup(string(outcome))
		switch outcome {
		case OutcomeResolved:
			report.Resolved++
			g.logger.Info("resolved", zap.String("key", key), zap.String("place_id", *rec.PlaceID))
		case OutcomeLowConfidence:
			report.Resolved++
			report.LowConfidence++
			report.warn(key, outcome, msg)
			g.logger.Warn("low confidence match", zap.String("key", key), zap.String("query", query), zap.String("reason", msg))
		default:
			report.Unresolved++
			report.warn(key, outcome, msg)
			g.logger.Warn("unresolved", zap.String("key", key), zap.String("query", query), zap.String("reason", msg))
		}
		report.add(stored, outcome)

		if err := store.Flush(ctx); err != nil {
			return report, fmt.Errorf("flush cache: %w", err)
		}
	}

	if err := store.Flush(ctx); err != nil {
		return report, fmt.Errorf("flush cache: %w", err)
	}
	if report.Deferred > 0 {
		g.logger.Warn("quota reached, records deferred to a later run",
			zap.Int("quota", g.cfg.Quota),
			zap.Int("deferred", report.Deferred))
	}
	g.logger.Info("enrichment complete",
		zap.Int("records", len(report.Records)),
		zap.Int("calls", report.Calls),
		zap.Int("cache_hits", report.CacheHits),
		zap.Int("resolved", report.Resolved),
		zap.Int("low_confidence", report.LowConfidence),
		zap.Int("unresolved", report.Unresolved),
		zap.Int("deferred", report.Deferred))
	return report, nil
}

// resolve turns lookup candidates into an enriched record. Only the first
// candidate is considered.
func (g *Geocoder) resolve(raw crawler.RawRecord, candidates []crawler.PlaceCandidate) (crawler.EnrichedRecord, Outcome, string) {
	rec := crawler.Unenriched(raw)
	if len(candidates) == 0 {
		return rec, OutcomeNoMatch, "no candidates returned"
	}
	best := candidates[0]
	if err := validateCandidate(best); err != nil {
		return rec, OutcomeInvalid, err.Error()
	}

	rec.SetCoordinates(*best.Latitude, *best.Longitude)
	rec.PlaceID = crawler.StringPtr(best.PlaceID)
	if best.FormattedAddress != "" {
		rec.NormalizedAddress = crawler.StringPtr(best.FormattedAddress)
	}
	now := g.clock.Now().UTC()
	rec.ResolvedAt = &now

	if !g.venues.matches(best.Types) {
		rec.LowConfidence = true
		return rec, OutcomeLowConfidence, fmt.Sprintf("match %q has no venue type (types %v)", best.Name, best.Types)
	}
	return rec, OutcomeResolved, ""
}

func (r *EnrichReport) add(rec crawler.EnrichedRecord, outcome Outcome) {
	r.Records = append(r.Records, rec)
	r.Outcomes = append(r.Outcomes, outcome)
}

func (r *EnrichReport) warn(key string, outcome Outcome, msg string) {
	r.Warnings = append(r.Warnings, Warning{Key: key, Outcome: outcome, Message: msg})
}
