package documents

import (
	"context"
	"fmt"

	"carhire/internal/models"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/docstore"
)

type trackingTokenRepository struct {
	store docstore.Store
}

func NewTrackingTokenRepository(store docstore.Store) interfaces.TrackingTokenRepository {
	return &trackingTokenRepository{store: store}
}

func (r *trackingTokenRepository) Create(ctx context.Context, token *models.TrackingToken) error {
	if err := r.store.Set(ctx, CollectionTrackingTokens, token.Token, EncodeTrackingToken(token)); err != nil {
		return fmt.Errorf("failed to create tracking token: %w", err)
	}
	return nil
}

func (r *trackingTokenRepository) Get(ctx context.Context, token string) (*models.TrackingToken, error) {
	snap, err := r.store.Get(ctx, CollectionTrackingTokens, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking token: %w", storeError(err))
	}
	return DecodeTrackingToken(snap), nil
}

func (r *trackingTokenRepository) Delete(ctx context.Context, token string) error {
	if err := r.store.Delete(ctx, CollectionTrackingTokens, token); err != nil {
		return fmt.Errorf("failed to delete tracking token: %w", storeError(err))
	}
	return nil
}
