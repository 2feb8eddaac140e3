package geocode

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
)

// DefaultVenueTypes are the place types that count as a plausible match.
var DefaultVenueTypes = []string{"cafe", "restaurant", "bakery", "food", "bar", "meal_takeaway"}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90 (got %f)", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180 (got %f)", lng)
	}
	return nil
}

// validateCandidate reports why a candidate cannot be used, or nil.
func validateCandidate(c crawler.PlaceCandidate) error {
	if strings.TrimSpace(c.PlaceID) == "" {
		return fmt.Errorf("candidate has no place id")
	}
	if c.Latitude == nil || c.Longitude == nil {
		return fmt.Errorf("candidate %s has no coordinates", c.PlaceID)
	}
	return validateCoordinates(*c.Latitude, *c.Longitude)
}

type venueSet map[string]struct{}

func newVenueSet(types []string) venueSet {
	if len(types) == 0 {
		types = DefaultVenueTypes
	}
	set := make(venueSet, len(types))
	for _, t := range types {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}

// matches reports whether any candidate type is a venue type. A candidate
// with no type tags cannot be judged and is accepted.
func (v venueSet) matches(types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if _, ok := v[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}
