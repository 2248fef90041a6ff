package documents

import (
	"context"
	"fmt"
	"time"

	"carhire/internal/models"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/docstore"
)

type userRepository struct {
	store docstore.Store
	now   func() time.Time
}

func NewUserRepository(store docstore.Store) interfaces.UserRepository {
	return &userRepository{store: store, now: time.Now}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	now := r.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.SchemaVersion = models.CurrentSchemaVersion

	if err := r.store.Set(ctx, CollectionUsers, user.ID, EncodeUser(user)); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	snap, err := r.store.Get(ctx, CollectionUsers, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", storeError(err))
	}
	return DecodeUser(snap), nil
}

func (r *userRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	fields := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	if _, ok := fields[FieldUpdatedAt]; !ok {
		fields[FieldUpdatedAt] = r.now().UTC()
	}

	if err := r.store.Update(ctx, CollectionUsers, id, docstore.UpdatesFromMap(fields)); err != nil {
		return fmt.Errorf("failed to update user: %w", storeError(err))
	}
	return nil
}

func (r *userRepository) Watch(ctx context.Context, id string) (interfaces.Watch[*models.User], error) {
	sub, err := r.store.Subscribe(ctx, CollectionUsers, id)
	if err != nil {
		return nil, fmt.Errorf("failed to watch user: %w", err)
	}
	return watchEvents(sub, documentChange(DecodeUser)), nil
}

func (r *userRepository) AddNotification(ctx context.Context, id string, notification models.Notification) error {
	return r.Update(ctx, id, map[string]interface{}{
		FieldNotifications: docstore.ArrayUnion(EncodeNotification(notification)),
	})
}

func (r *userRepository) FindByShortID(ctx context.Context, shortID string, limit int) ([]*models.User, error) {
	q := docstore.Collection(CollectionUsers).Where(FieldReferralShortID, docstore.OpEqual, shortID)
	if limit > 0 {
		q = q.Take(limit)
	}
	snaps, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to find users by short id: %w", err)
	}
	users := make([]*models.User, 0, len(snaps))
	for _, snap := range snaps {
		users = append(users, DecodeUser(snap))
	}
	return users, nil
}
