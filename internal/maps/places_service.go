package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"
)

// Place represents a simplified location result.
type Place struct {
	Name             string
	Address          string
	Rating           float32
	PlaceID          string
	UserRatingsTotal int
	Types            []string
}

// PlacesService handles interactions with Google Places API.
type PlacesService struct {
	client *maps.Client
}

// NewPlacesService creates a new PlacesService with the given API Key.
func NewPlacesService(apiKey string) (*PlacesService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &PlacesService{client: client}, nil
}

// TopAttractions searches for well rated attractions around a destination.
// Used to ground itinerary prompts in real places. Results below 4.0 are
// dropped; the destination name itself is filtered out of results.
func (s *PlacesService) TopAttractions(ctx context.Context, destination string, limit int) ([]Place, error) {
	r := &maps.TextSearchRequest{
		Query: fmt.Sprintf("tourist attractions in %s", destination),
	}
	resp, err := s.client.TextSearch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	var results []Place
	for _, result := range resp.Results {
		if result.Rating < 4.0 {
			continue
		}
		if strings.EqualFold(result.Name, destination) {
			continue
		}
		results = append(results, Place{
			Name:             result.Name,
			Address:          result.FormattedAddress,
			Rating:           result.Rating,
			PlaceID:          result.PlaceID,
			UserRatingsTotal: result.UserRatingsTotal,
			Types:            result.Types,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// ContextLines renders places as prompt-ready bullet lines.
func ContextLines(places []Place) string {
	var b strings.Builder
	for _, p := range places {
		fmt.Fprintf(&b, "- %s (rating %.1f, %d reviews) %s\n",
			p.Name, p.Rating, p.UserRatingsTotal, p.Address)
	}
	return b.String()
}
