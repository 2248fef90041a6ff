package maps

import (
	"context"
	"errors"
)

// ErrNoResults is returned when a provider answers without any match.
var ErrNoResults = errors.New("no geocoding results")

// Geocoder resolves addresses and coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodeResponse, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResponse, error)
}

type GeocodeResponse struct {
	Results []GeocodeResult `json:"results"`
}

type GeocodeResult struct {
	PlaceID     string   `json:"place_id"`
	Address     string   `json:"formatted_address"`
	Coordinates Location `json:"geometry"`
	Types       []string `json:"types"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DisplayName reduces a response to the single human-readable address of its
// best match.
func DisplayName(resp *GeocodeResponse) (string, error) {
	if resp == nil {
		return "", ErrNoResults
	}
	for _, r := range resp.Results {
		if r.Address != "" {
			return r.Address, nil
		}
	}
	return "", ErrNoResults
}
