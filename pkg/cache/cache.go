package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key does not exist or has expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the key/value store used for short-lived state: sharing flags, OTPs and
// reverse-geocode results. Values are JSON encoded.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Count increments the counter at key and returns the new value. The first
	// increment starts a window of the given length after which the counter is gone.
	Count(ctx context.Context, key string, window time.Duration) (int64, error)
}
