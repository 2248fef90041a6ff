package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type MapboxProvider struct {
	accessToken string
	httpClient  *http.Client
	baseURL     string
}

func NewMapboxProvider(accessToken string, timeout time.Duration) *MapboxProvider {
	return &MapboxProvider{
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     "https://api.mapbox.com",
	}
}

type mapboxFeatures struct {
	Features []struct {
		ID        string    `json:"id"`
		PlaceName string    `json:"place_name"`
		PlaceType []string  `json:"place_type"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

func (m *MapboxProvider) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	return m.places(ctx, url.PathEscape(address))
}

// ReverseGeocode queries with lng,lat order, as the Mapbox places API expects.
func (m *MapboxProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResponse, error) {
	return m.places(ctx, fmt.Sprintf("%f,%f", lng, lat))
}

func (m *MapboxProvider) places(ctx context.Context, query string) (*GeocodeResponse, error) {
	apiURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?limit=1&access_token=%s",
		m.baseURL, query, url.QueryEscape(m.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapbox API error (%d): %s", resp.StatusCode, string(body))
	}

	var features mapboxFeatures
	if err := json.Unmarshal(body, &features); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(features.Features) == 0 {
		return nil, ErrNoResults
	}

	results := make([]GeocodeResult, 0, len(features.Features))
	for _, feature := range features.Features {
		result := GeocodeResult{
			PlaceID: feature.ID,
			Address: feature.PlaceName,
			Types:   feature.PlaceType,
		}
		if len(feature.Center) == 2 {
			result.Coordinates = Location{Latitude: feature.Center[1], Longitude: feature.Center[0]}
		}
		results = append(results, result)
	}
	return &GeocodeResponse{Results: results}, nil
}
