package config

import "time"

type MapsConfig struct {
	Provider           string            `yaml:"provider"`
	GoogleMaps         *GoogleMapsConfig `yaml:"google_maps"`
	Mapbox             *MapboxConfig     `yaml:"mapbox"`
	Nominatim          *NominatimConfig  `yaml:"nominatim"`
	Timeout            time.Duration     `yaml:"timeout"`
	GeocodeCacheTTL    time.Duration     `yaml:"geocode_cache_ttl"`
	PlaceholderAddress string            `yaml:"placeholder_address"`
}

type GoogleMapsConfig struct {
	APIKey string `yaml:"api_key"`
}

type MapboxConfig struct {
	AccessToken string `yaml:"access_token"`
}

// NominatimConfig points at an OpenStreetMap Nominatim server. The public one
// requires an identifying User-Agent.
type NominatimConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

func loadMapsConfig() *MapsConfig {
	return &MapsConfig{
		Provider: getEnv("MAPS_PROVIDER", "google"),
		GoogleMaps: &GoogleMapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		},
		Mapbox: &MapboxConfig{
			AccessToken: getEnv("MAPBOX_ACCESS_TOKEN", ""),
		},
		Nominatim: &NominatimConfig{
			BaseURL:   getEnv("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getEnv("NOMINATIM_USER_AGENT", "carhire-server/1.0"),
		},
		Timeout:            getEnvAsDuration("MAPS_TIMEOUT", 5*time.Second),
		GeocodeCacheTTL:    getEnvAsDuration("GEOCODE_CACHE_TTL", 24*time.Hour),
		PlaceholderAddress: getEnv("GEOCODE_PLACEHOLDER_ADDRESS", "Location unavailable"),
	}
}
