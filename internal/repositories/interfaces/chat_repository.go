package interfaces

import (
	"context"
	"time"

	"carhire/internal/models"
)

type ChatRepository interface {
	GetThread(ctx context.Context, id string) (*models.ChatThread, error)
	CreateThread(ctx context.Context, thread *models.ChatThread) error
	GetMessages(ctx context.Context, threadID string) ([]*models.Message, error)

	// WatchThreadsFor delivers every thread the user participates in, on each change.
	WatchThreadsFor(ctx context.Context, userID string) (Watch[[]*models.ChatThread], error)

	// FindInactiveSince returns threads whose lastActivity is before cutoff.
	FindInactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]*models.ChatThread, error)

	// DeleteThreads hard deletes threads and their messages in one batch.
	DeleteThreads(ctx context.Context, ids []string) error
}
