package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carhire/internal/utils"
	"carhire/pkg/cache"
)

// SharingState is the persisted flag that lets a device resume sharing after a
// reconnect or a server restart.
type SharingState struct {
	UserID    string    `json:"user_id"`
	TripID    string    `json:"trip_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

type SharingStateStore interface {
	Save(ctx context.Context, state SharingState) error
	// Load returns nil without error when no flag is stored.
	Load(ctx context.Context, userID string) (*SharingState, error)
	Clear(ctx context.Context, userID string) error
}

type cacheSharingState struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewSharingStateStore(c cache.Cache, ttl time.Duration) SharingStateStore {
	return &cacheSharingState{cache: c, ttl: ttl}
}

func sharingKey(userID string) string {
	return utils.CacheSharingPrefix + userID
}

func (s *cacheSharingState) Save(ctx context.Context, state SharingState) error {
	if err := s.cache.Set(ctx, sharingKey(state.UserID), state, s.ttl); err != nil {
		return fmt.Errorf("failed to save sharing state: %w", err)
	}
	return nil
}

func (s *cacheSharingState) Load(ctx context.Context, userID string) (*SharingState, error) {
	var state SharingState
	if err := s.cache.Get(ctx, sharingKey(userID), &state); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load sharing state: %w", err)
	}
	return &state, nil
}

func (s *cacheSharingState) Clear(ctx context.Context, userID string) error {
	if err := s.cache.Delete(ctx, sharingKey(userID)); err != nil {
		return fmt.Errorf("failed to clear sharing state: %w", err)
	}
	return nil
}
