package interfaces

import (
	"context"

	"carhire/internal/models"
)

type TripRepository interface {
	Create(ctx context.Context, trip *models.Trip) error
	GetByID(ctx context.Context, id string) (*models.Trip, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	Watch(ctx context.Context, id string) (Watch[*models.Trip], error)

	GetActiveByParticipant(ctx context.Context, userID string) ([]*models.Trip, error)
}
