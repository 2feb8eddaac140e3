// Package snapshot persists the latest scraped list and detects changes
// between runs.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
)

const contentType = "application/json; charset=utf-8"

// Result describes one Save.
type Result struct {
	// Changed is true when the canonical content differs from the previous
	// snapshot, including when there was none.
	Changed     bool
	Previous    string
	Current     string
	Records     int
	Location    string
	HadPrevious bool
}

// Store reads and writes the snapshot object.
type Store struct {
	blobs  crawler.BlobStore
	path   string
	hasher crawler.Hasher
	logger *zap.Logger
}

// New builds a Store writing to path inside blobs.
func New(blobs crawler.BlobStore, path string, hasher crawler.Hasher, logger *zap.Logger) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("snapshot: blob store is required")
	}
	if hasher == nil {
		return nil, errors.New("snapshot: hasher is required")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("snapshot: path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{blobs: blobs, path: path, hasher: hasher, logger: logger.Named("snapshot")}, nil
}

// Load returns the previous snapshot. A missing object is an empty list.
func (s *Store) Load(ctx context.Context) ([]crawler.RawRecord, error) {
	data, err := s.blobs.GetObject(ctx, s.path)
	if errors.Is(err, crawler.ErrObjectNotFound) {
		return []crawler.RawRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	var records []crawler.RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	for i := range records {
		records[i].Category = crawler.NormalizeCategory(string(records[i].Category))
	}
	return records, nil
}

// Save compares records against the previous snapshot and then replaces it.
// An unreadable previous snapshot counts as changed.
func (s *Store) Save(ctx context.Context, records []crawler.RawRecord) (Result, error) {
	current, err := Fingerprint(s.hasher, records)
	if err != nil {
		return Result{}, err
	}
	result := Result{Current: current, Records: len(records), Changed: true}

	previous, err := s.Load(ctx)
	switch {
	case err != nil:
		s.logger.Warn("previous snapshot unreadable, treating as changed", zap.Error(err))
	case len(previous) > 0:
		result.HadPrevious = true
		result.Previous, err = Fingerprint(s.hasher, previous)
		if err != nil {
			return Result{}, err
		}
		result.Changed = result.Previous != result.Current
	}

	if records == nil {
		records = []crawler.RawRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("encode snapshot: %w", err)
	}
	location, err := s.blobs.PutObject(ctx, s.path, contentType, data)
	if err != nil {
		return Result{}, fmt.Errorf("write snapshot %s: %w", s.path, err)
	}
	result.Location = location

	s.logger.Info("snapshot saved",
		zap.String("location", location),
		zap.Int("records", result.Records),
		zap.Bool("changed", result.Changed),
		zap.String("fingerprint", result.Current))
	return result, nil
}

type canonicalEntry struct {
	category string
	rank     int
	name     string
	city     string
	country  string
}

// Fingerprint digests the order-independent canonical form of records:
// normalized category, rank, and case-folded name, city and country.
func Fingerprint(hasher crawler.Hasher, records []crawler.RawRecord) (string, error) {
	fold := cases.Fold()
	entries := make([]canonicalEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, canonicalEntry{
			category: string(crawler.NormalizeCategory(string(r.Category))),
			rank:     r.Rank,
			name:     fold.String(strings.TrimSpace(r.Name)),
			city:     fold.String(strings.TrimSpace(r.CityOrEmpty())),
			country:  fold.String(strings.TrimSpace(r.Country)),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.category != b.category {
			return a.category < b.category
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.name != b.name {
			return a.name < b.name
		}
		if a.city != b.city {
			return a.city < b.city
		}
		return a.country < b.country
	})

	tuples := make([][]any, 0, len(entries))
	for _, e := range entries {
		tuples = append(tuples, []any{e.category, e.rank, e.name, e.city, e.country})
	}
	data, err := json.Marshal(tuples)
	if err != nil {
		return "", fmt.Errorf("encode canonical snapshot: %w", err)
	}
	digest, err := hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	return digest, nil
}
