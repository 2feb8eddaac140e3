// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// Category identifies which published list an entry belongs to.
type Category string

// Known list categories.
const (
	CategoryTop100       Category = "Top 100"
	CategorySouthAmerica Category = "South America"
)

// Placeholders written when a field could not be scraped.
const (
	UnknownCountry  = "Unknown"
	AddressNotFound = "Address not found"
)

// RawRecord is one scraped list entry, created fresh on every run.
type RawRecord struct {
	Name      string   `json:"name"`
	Rank      int      `json:"rank"`
	Country   string   `json:"country"`
	City      *string  `json:"city,omitempty"`
	Address   string   `json:"address"`
	Category  Category `json:"category"`
	DetailURL string   `json:"source_url"`
}

// Identity returns the cache key of the record.
func (r RawRecord) Identity() Identity {
	return NewIdentity(r.Name, r.Category)
}

// HasAddress reports whether the address is real content rather than the placeholder.
func (r RawRecord) HasAddress() bool {
	return r.Address != "" && r.Address != AddressNotFound
}

// CityOrEmpty dereferences City.
func (r RawRecord) CityOrEmpty() string {
	if r.City == nil {
		return ""
	}
	return *r.City
}

// EnrichedRecord is a RawRecord plus the outcome of place resolution.
// Latitude and Longitude are always both set or both nil.
type EnrichedRecord struct {
	RawRecord
	Latitude          *float64   `json:"lat,omitempty"`
	Longitude         *float64   `json:"lng,omitempty"`
	PlaceID           *string    `json:"place_id,omitempty"`
	NormalizedAddress *string    `json:"formatted_address,omitempty"`
	LowConfidence     bool       `json:"low_confidence,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether the record carries a stable place identifier.
func (e EnrichedRecord) Resolved() bool {
	return e.PlaceID != nil && *e.PlaceID != ""
}

// HasCoordinates reports whether both coordinates are present.
func (e EnrichedRecord) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// SetCoordinates assigns both coordinates together.
func (e *EnrichedRecord) SetCoordinates(lat, lng float64) {
	e.Latitude = &lat
	e.Longitude = &lng
}

// ClearResolution drops every resolution field.
func (e *EnrichedRecord) ClearResolution() {
	e.Latitude = nil
	e.Longitude = nil
	e.PlaceID = nil
	e.NormalizedAddress = nil
	e.LowConfidence = false
	e.ResolvedAt = nil
}

// Unenriched wraps a raw record with no resolution fields.
func Unenriched(r RawRecord) EnrichedRecord {
	return EnrichedRecord{RawRecord: r}
}

// Source is one list page to scrape.
type Source struct {
	Category Category `mapstructure:"category" json:"category"`
	URL      string   `mapstructure:"url" json:"url"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}

// PlaceCandidate is one match returned by a PlaceSearcher.
type PlaceCandidate struct {
	PlaceID          string
	Name             string
	FormattedAddress string
	Latitude         *float64
	Longitude        *float64
	Types            []string
}
