package maps

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"googlemaps.github.io/maps"
)

// Result types requested when reverse geocoding a live position.
var reverseResultTypes = []string{"street_address", "premise", "route", "intersection", "neighborhood", "locality"}

type GoogleMapsProvider struct {
	client *maps.Client
}

func NewGoogleMapsProvider(apiKey string, timeout time.Duration) (*GoogleMapsProvider, error) {
	client, err := maps.NewClient(
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return &GoogleMapsProvider{
		client: client,
	}, nil
}

func (g *GoogleMapsProvider) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	resp, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return nil, fmt.Errorf("geocoding failed: %w", err)
	}
	return fromGoogle(resp)
}

func (g *GoogleMapsProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResponse, error) {
	resp, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:     &maps.LatLng{Lat: lat, Lng: lng},
		ResultType: reverseResultTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("reverse geocoding failed: %w", err)
	}
	return fromGoogle(resp)
}

// fromGoogle drops results that are only a plus code.
func fromGoogle(resp []maps.GeocodingResult) (*GeocodeResponse, error) {
	results := make([]GeocodeResult, 0, len(resp))
	for _, result := range resp {
		if result.PlusCode.GlobalCode != "" && result.FormattedAddress == result.PlusCode.CompoundCode {
			continue
		}
		results = append(results, GeocodeResult{
			PlaceID: result.PlaceID,
			Address: result.FormattedAddress,
			Coordinates: Location{
				Latitude:  result.Geometry.Location.Lat,
				Longitude: result.Geometry.Location.Lng,
			},
			Types: result.Types,
		})
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return &GeocodeResponse{Results: results}, nil
}
