// Package geolocation models the device geolocation capability: a one-shot position
// request and a continuous watch, both governed by the same options and failing with
// the W3C position error codes.
package geolocation

import (
	"context"
	"fmt"
	"time"
)

type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Options struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// DefaultOptions are used for location sharing: high accuracy, 10s timeout and
// cached positions up to 30s old.
func DefaultOptions() Options {
	return Options{
		EnableHighAccuracy: true,
		Timeout:            10 * time.Second,
		MaximumAge:         30 * time.Second,
	}
}

type ErrorCode int

const (
	PermissionDenied    ErrorCode = 1
	PositionUnavailable ErrorCode = 2
	Timeout             ErrorCode = 3
)

func (c ErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case PositionUnavailable:
		return "POSITION_UNAVAILABLE"
	case Timeout:
		return "TIMEOUT"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(c))
}

type PositionError struct {
	Code    ErrorCode
	Message string
}

func (e *PositionError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WatchHandle identifies a registered watch.
type WatchHandle int64

// Source is the geolocation capability of a device.
//
// WatchPosition invokes onPosition for every new fix and onError at most once; after
// onError the watch delivers nothing more. ClearWatch is safe to call with a handle
// that has already ended.
type Source interface {
	CurrentPosition(ctx context.Context, opts Options) (Position, error)
	WatchPosition(opts Options, onPosition func(Position), onError func(*PositionError)) (WatchHandle, error)
	ClearWatch(h WatchHandle)
}
