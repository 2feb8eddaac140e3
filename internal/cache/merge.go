package cache

import "github.com/JakeFAU/coffee-map-sync/internal/crawler"

// Merge combines a stored record with a newer write. Anything the newer write
// resolves wins; anything it leaves absent or as a placeholder keeps the
// stored value. Coordinates move as a pair, and the confidence flag and
// resolution time follow whichever side supplied the place identifier.
func Merge(existing, incoming crawler.EnrichedRecord) crawler.EnrichedRecord {
	out := existing

	if incoming.Name != "" {
		out.Name = incoming.Name
	}
	if incoming.Category != "" {
		out.Category = incoming.Category
	}
	if incoming.Rank > 0 {
		out.Rank = incoming.Rank
	}
	if incoming.Country != "" && (incoming.Country != crawler.UnknownCountry || out.Country == "") {
		out.Country = incoming.Country
	}
	if incoming.City != nil && *incoming.City != "" {
		out.City = incoming.City
	}
	if incoming.HasAddress() || (out.Address == "" && incoming.Address != "") {
		out.Address = incoming.Address
	}
	if incoming.DetailURL != "" {
		out.DetailURL = incoming.DetailURL
	}

	if incoming.HasCoordinates() {
		out.Latitude = incoming.Latitude
		out.Longitude = incoming.Longitude
	}
	if incoming.NormalizedAddress != nil && *incoming.NormalizedAddress != "" {
		out.NormalizedAddress = incoming.NormalizedAddress
	}
	if incoming.Resolved() {
		out.PlaceID = incoming.PlaceID
		out.LowConfidence = incoming.LowConfidence
		if incoming.ResolvedAt != nil {
			out.ResolvedAt = incoming.ResolvedAt
		}
	} else if !out.Resolved() && incoming.ResolvedAt != nil {
		out.ResolvedAt = incoming.ResolvedAt
	}
	return out
}
