package geocode

import (
	"strings"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
)

// BuildQuery renders the free-text lookup for a record as
// "name, address, country". The address placeholder is never sent; the city
// stands in for it when known.
func BuildQuery(rec crawler.RawRecord) string {
	parts := make([]string, 0, 3)
	if name := strings.TrimSpace(rec.Name); name != "" {
		parts = append(parts, name)
	}
	switch {
	case rec.HasAddress():
		parts = append(parts, strings.TrimSpace(rec.Address))
	case strings.TrimSpace(rec.CityOrEmpty()) != "":
		parts = append(parts, strings.TrimSpace(rec.CityOrEmpty()))
	}
	if country := strings.TrimSpace(rec.Country); country != "" && country != crawler.UnknownCountry {
		parts = append(parts, country)
	}
	return strings.Join(parts, ", ")
}
