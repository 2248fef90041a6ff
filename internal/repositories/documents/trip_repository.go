package documents

import (
	"context"
	"fmt"
	"time"

	"carhire/internal/models"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/docstore"
)

type tripRepository struct {
	store docstore.Store
	now   func() time.Time
}

func NewTripRepository(store docstore.Store) interfaces.TripRepository {
	return &tripRepository{store: store, now: time.Now}
}

func (r *tripRepository) Create(ctx context.Context, trip *models.Trip) error {
	now := r.now()
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = now
	}
	trip.UpdatedAt = now

	if err := r.store.Set(ctx, CollectionTrips, trip.ID, EncodeTrip(trip)); err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

func (r *tripRepository) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	snap, err := r.store.Get(ctx, CollectionTrips, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", storeError(err))
	}
	return DecodeTrip(snap), nil
}

func (r *tripRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	fields := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	if _, ok := fields[FieldUpdatedAt]; !ok {
		fields[FieldUpdatedAt] = r.now().UTC()
	}

	if err := r.store.Update(ctx, CollectionTrips, id, docstore.UpdatesFromMap(fields)); err != nil {
		return fmt.Errorf("failed to update trip: %w", storeError(err))
	}
	return nil
}

func (r *tripRepository) Watch(ctx context.Context, id string) (interfaces.Watch[*models.Trip], error) {
	sub, err := r.store.Subscribe(ctx, CollectionTrips, id)
	if err != nil {
		return nil, fmt.Errorf("failed to watch trip: %w", err)
	}
	return watchEvents(sub, documentChange(DecodeTrip)), nil
}

func (r *tripRepository) GetActiveByParticipant(ctx context.Context, userID string) ([]*models.Trip, error) {
	var trips []*models.Trip
	seen := make(map[string]bool)
	for _, field := range []string{FieldDriverID, FieldCustomerID} {
		snaps, err := r.store.Query(ctx, docstore.Collection(CollectionTrips).
			Where(field, docstore.OpEqual, userID).
			Where(FieldStatus, docstore.OpEqual, string(models.TripStatusActive)))
		if err != nil {
			return nil, fmt.Errorf("failed to get active trips: %w", err)
		}
		for _, snap := range snaps {
			if !seen[snap.ID] {
				seen[snap.ID] = true
				trips = append(trips, DecodeTrip(snap))
			}
		}
	}
	return trips, nil
}
