package maps

import (
	"context"
	"fmt"
	"time"

	"carhire/pkg/cache"
)

const reverseCachePrefix = "geocode:"

// CachedGeocoder memoizes reverse lookups on coordinates rounded to four decimals
// (about 11m). Forward lookups pass through.
type CachedGeocoder struct {
	next  Geocoder
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedGeocoder(next Geocoder, c cache.Cache, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: c, ttl: ttl}
}

func reverseKey(lat, lng float64) string {
	return fmt.Sprintf("%s%.4f,%.4f", reverseCachePrefix, lat, lng)
}

func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	return c.next.Geocode(ctx, address)
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResponse, error) {
	key := reverseKey(lat, lng)
	var cached GeocodeResponse
	if err := c.cache.Get(ctx, key, &cached); err == nil && len(cached.Results) > 0 {
		return &cached, nil
	}

	resp, err := c.next.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	// A failed cache write only costs a later lookup.
	_ = c.cache.Set(ctx, key, resp, c.ttl)
	return resp, nil
}
