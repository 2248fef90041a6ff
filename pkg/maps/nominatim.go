package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// NominatimProvider is the OpenStreetMap geocoder. It needs no key but requires an
// identifying User-Agent.
type NominatimProvider struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

func NewNominatimProvider(baseURL, userAgent string, timeout time.Duration) *NominatimProvider {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	return &NominatimProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		userAgent:  userAgent,
	}
}

type nominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Type        string `json:"type"`
}

func (n *NominatimProvider) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	params := url.Values{"format": {"json"}, "limit": {"1"}, "q": {address}}
	var places []nominatimPlace
	if err := n.get(ctx, "/search", params, &places); err != nil {
		return nil, err
	}
	return fromNominatim(places)
}

func (n *NominatimProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResponse, error) {
	params := url.Values{
		"format": {"json"},
		"lat":    {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":    {strconv.FormatFloat(lng, 'f', 6, 64)},
	}
	var place nominatimPlace
	if err := n.get(ctx, "/reverse", params, &place); err != nil {
		return nil, err
	}
	return fromNominatim([]nominatimPlace{place})
}

func (n *NominatimProvider) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nominatim API error: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func fromNominatim(places []nominatimPlace) (*GeocodeResponse, error) {
	results := make([]GeocodeResult, 0, len(places))
	for _, p := range places {
		if p.DisplayName == "" {
			continue
		}
		lat, _ := strconv.ParseFloat(p.Lat, 64)
		lon, _ := strconv.ParseFloat(p.Lon, 64)
		results = append(results, GeocodeResult{
			PlaceID:     strconv.FormatInt(p.PlaceID, 10),
			Address:     p.DisplayName,
			Coordinates: Location{Latitude: lat, Longitude: lon},
			Types:       []string{p.Type},
		})
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return &GeocodeResponse{Results: results}, nil
}
