// Package cache persists enrichment outcomes keyed by entry identity.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/coffee-map-sync/internal/clock/system"
	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
	"github.com/JakeFAU/coffee-map-sync/internal/metrics"
)

// FormatVersion is written into every saved document.
const FormatVersion = 1

const contentType = "application/json"

// document is the on-disk layout.
type document struct {
	Version   int                               `json:"version"`
	UpdatedAt time.Time                         `json:"updated_at"`
	Entries   map[string]crawler.EnrichedRecord `json:"entries"`
}

// Cache maps entry identities to enriched records. Entries are never removed.
// Concurrent runs against the same object resolve as last writer wins.
type Cache struct {
	store  crawler.BlobStore
	path   string
	clock  crawler.Clock
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]crawler.EnrichedRecord
	dirty   bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the clock used for the updated_at stamp.
func WithClock(clock crawler.Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds an empty cache persisted at path in store. Call Load to read
// existing content.
func New(store crawler.BlobStore, path string, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, errors.New("cache: blob store is required")
	}
	if path == "" {
		return nil, errors.New("cache: path is required")
	}
	c := &Cache{
		store:   store,
		path:    path,
		clock:   system.New(),
		logger:  zap.NewNop(),
		entries: map[string]crawler.EnrichedRecord{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("cache")
	return c, nil
}

// Load replaces the in-memory state with the persisted document. A missing
// document is an empty cache; a malformed one is an error.
func (c *Cache) Load(ctx context.Context) error {
	data, err := c.store.GetObject(ctx, c.path)
	if err != nil {
		if errors.Is(err, crawler.ErrObjectNotFound) {
			c.mu.Lock()
			c.entries = map[string]crawler.EnrichedRecord{}
			c.dirty = false
			c.mu.Unlock()
			c.logger.Info("no cache found, starting empty", zap.String("path", c.path))
			return nil
		}
		return fmt.Errorf("load cache %s: %w", c.path, err)
	}

	entries, err := decode(data)
	if err != nil {
		return fmt.Errorf("load cache %s: %w", c.path, err)
	}
	c.mu.Lock()
	c.entries = entries
	c.dirty = false
	c.mu.Unlock()
	c.logger.Info("cache loaded", zap.String("path", c.path), zap.Int("entries", len(entries)))
	return nil
}

// decode accepts the versioned document and the bare key→record mapping
// written by older releases.
func decode(data []byte) (map[string]crawler.EnrichedRecord, error) {
	var head map[string]json.RawMessage
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	if _, versioned := head["entries"]; versioned {
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode cache document: %w", err)
		}
		if doc.Version > FormatVersion {
			return nil, fmt.Errorf("cache format version %d is newer than supported %d", doc.Version, FormatVersion)
		}
		return rekey(doc.Entries), nil
	}
	legacy := map[string]crawler.EnrichedRecord{}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy cache: %w", err)
	}
	return rekey(legacy), nil
}

// rekey recomputes keys from record content so identity rules stay
// authoritative over whatever key text was stored.
func rekey(in map[string]crawler.EnrichedRecord) map[string]crawler.EnrichedRecord {
	out := make(map[string]crawler.EnrichedRecord, len(in))
	for storedKey, rec := range in {
		key := storedKey
		if rec.Name != "" {
			rec.Category = crawler.NormalizeCategory(string(rec.Category))
			key = rec.Identity().Key()
		}
		if existing, ok := out[key]; ok {
			rec = Merge(existing, rec)
		}
		out[key] = rec
	}
	return out
}

// Save writes the full mapping, replacing the previous document atomically.
func (c *Cache) Save(ctx context.Context) error {
	c.mu.Lock()
	doc := document{
		Version:   FormatVersion,
		UpdatedAt: c.clock.Now().UTC(),
		Entries:   make(map[string]crawler.EnrichedRecord, len(c.entries)),
	}
	for k, v := range c.entries {
		doc.Entries[k] = v
	}
	c.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		metrics.ObserveCacheFlush("error")
		return fmt.Errorf("encode cache: %w", err)
	}
	if _, err := c.store.PutObject(ctx, c.path, contentType, data); err != nil {
		metrics.ObserveCacheFlush("error")
		return fmt.Errorf("save cache %s: %w", c.path, err)
	}
	metrics.ObserveCacheFlush("ok")

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	c.logger.Debug("cache saved", zap.String("path", c.path), zap.Int("entries", len(doc.Entries)))
	return nil
}

// Flush saves only when something changed since the last save.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	dirty := c.dirty
	c.mu.Unlock()
	if !dirty {
		return nil
	}
	return c.Save(ctx)
}

// Lookup returns the cached record for id.
func (c *Cache) Lookup(id crawler.Identity) (crawler.EnrichedRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[id.Key()]
	return rec, ok
}

// Put merges rec into the entry with the same identity and returns the
// stored result.
func (c *Cache) Put(rec crawler.EnrichedRecord) crawler.EnrichedRecord {
	rec.Category = crawler.NormalizeCategory(string(rec.Category))
	key := rec.Identity().Key()

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		rec = Merge(existing, rec)
	}
	c.entries[key] = rec
	c.dirty = true
	return rec
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Records returns every entry ordered by category then rank then key.
func (c *Cache) Records() []crawler.EnrichedRecord {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	out := make([]crawler.EnrichedRecord, 0, len(keys))
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, c.entries[k])
	}
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Rank < out[j].Rank
	})
	return out
}

// Path returns the object path the cache persists to.
func (c *Cache) Path() string {
	return c.path
}
