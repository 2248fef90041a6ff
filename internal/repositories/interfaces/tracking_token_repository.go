package interfaces

import (
	"context"

	"carhire/internal/models"
)

type TrackingTokenRepository interface {
	Create(ctx context.Context, token *models.TrackingToken) error
	Get(ctx context.Context, token string) (*models.TrackingToken, error)
	Delete(ctx context.Context, token string) error
}
