package maps

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carhire/pkg/cache"
)

type countingGeocoder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *countingGeocoder) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	return nil, ErrNoResults
}

func (g *countingGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &GeocodeResponse{Results: []GeocodeResult{{Address: "1 Main St"}}}, nil
}

func TestCachedGeocoder_ReusesNearbyLookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	next := &countingGeocoder{}
	g := NewCachedGeocoder(next, cache.NewMemoryCache(), time.Hour)

	for _, lng := range []float64{77.59461, 77.59462} {
		resp, err := g.ReverseGeocode(ctx, 12.97160, lng)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name, _ := DisplayName(resp); name != "1 Main St" {
			t.Errorf("expected 1 Main St, got %q", name)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", next.calls)
	}
}

func TestCachedGeocoder_DoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	next := &countingGeocoder{err: errors.New("quota exceeded")}
	g := NewCachedGeocoder(next, cache.NewMemoryCache(), time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := g.ReverseGeocode(ctx, 1, 1); err == nil {
			t.Fatal("expected provider error")
		}
	}
	if next.calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", next.calls)
	}
}

func TestDisplayName_EmptyResponse(t *testing.T) {
	t.Parallel()

	if _, err := DisplayName(&GeocodeResponse{}); !errors.Is(err, ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}
}
