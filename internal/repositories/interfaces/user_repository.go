package interfaces

import (
	"context"

	"carhire/internal/models"
)

type UserRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error

	// Live state
	Watch(ctx context.Context, id string) (Watch[*models.User], error)

	// Notifications are appended with set-union semantics.
	AddNotification(ctx context.Context, id string, notification models.Notification) error

	// Legacy referral short ids
	FindByShortID(ctx context.Context, shortID string, limit int) ([]*models.User, error)
}
