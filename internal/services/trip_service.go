package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"carhire/internal/models"
	"carhire/internal/repositories/documents"
	"carhire/internal/repositories/interfaces"
	"carhire/internal/utils"
	"carhire/pkg/docstore"
	"carhire/pkg/events"
	"carhire/pkg/logger"
)

type TripService interface {
	CreateTrip(ctx context.Context, subject models.Subject, driverID, pickup, destination string) (*models.Trip, error)
	GetTrip(ctx context.Context, subject models.Subject, tripID string) (*models.Trip, error)
	ListActive(ctx context.Context, subject models.Subject) ([]*models.Trip, error)
	CompleteTrip(ctx context.Context, subject models.Subject, tripID string) (*models.Trip, error)
	CancelTrip(ctx context.Context, subject models.Subject, tripID string) (*models.Trip, error)
	RateTrip(ctx context.Context, subject models.Subject, tripID string, rating int, review string) error
}

type tripService struct {
	store     docstore.Store
	tripRepo  interfaces.TripRepository
	userRepo  interfaces.UserRepository
	location  LocationService
	publisher events.Publisher
	logger    *logger.Logger
	now       func() time.Time
}

func NewTripService(
	store docstore.Store,
	tripRepo interfaces.TripRepository,
	userRepo interfaces.UserRepository,
	location LocationService,
	publisher events.Publisher,
	log *logger.Logger,
) TripService {
	return &tripService{
		store:     store,
		tripRepo:  tripRepo,
		userRepo:  userRepo,
		location:  location,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

func (s *tripService) CreateTrip(ctx context.Context, subject models.Subject, driverID, pickup, destination string) (*models.Trip, error) {
	pickup, destination = strings.TrimSpace(pickup), strings.TrimSpace(destination)
	if driverID == "" || pickup == "" || destination == "" {
		return nil, validationError("driver, pickup and destination are required")
	}
	if subject.Is(driverID) {
		return nil, validationError("a driver cannot book their own trip")
	}

	driver, err := s.userRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, storeFailure("get driver", err)
	}
	if driver.Role != models.RoleDriver {
		return nil, validationError("user %s is not a driver", driverID)
	}

	trip := &models.Trip{
		ID:             uuid.NewString(),
		PickupLocation: pickup,
		Destination:    destination,
		DriverID:       driverID,
		CustomerID:     subject.UserID,
		Status:         models.TripStatusActive,
	}
	if err := s.tripRepo.Create(ctx, trip); err != nil {
		return nil, storeFailure("create trip", err)
	}

	s.logger.LogTripEvent(trip.ID, "trip_created", map[string]interface{}{
		"driver_id":   driverID,
		"customer_id": subject.UserID,
	})
	return trip, nil
}

func (s *tripService) GetTrip(ctx context.Context, subject models.Subject, tripID string) (*models.Trip, error) {
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, storeFailure("get trip", err)
	}
	if !trip.IsParticipant(subject.UserID) && !subject.IsAdmin() {
		return nil, ErrNotParticipant
	}
	return trip, nil
}

func (s *tripService) ListActive(ctx context.Context, subject models.Subject) ([]*models.Trip, error) {
	trips, err := s.tripRepo.GetActiveByParticipant(ctx, subject.UserID)
	if err != nil {
		return nil, storeFailure("list active trips", err)
	}
	return trips, nil
}

func (s *tripService) CompleteTrip(ctx context.Context, subject models.Subject, tripID string) (*models.Trip, error) {
	return s.finish(ctx, subject, tripID, models.TripStatusCompleted, utils.EventTripCompleted)
}

func (s *tripService) CancelTrip(ctx context.Context, subject models.Subject, tripID string) (*models.Trip, error) {
	return s.finish(ctx, subject, tripID, models.TripStatusCancelled, utils.EventTripCancelled)
}

// finish moves an active trip to a terminal state and stops both sides' sharing.
func (s *tripService) finish(ctx context.Context, subject models.Subject, tripID string, status models.TripStatus, eventType string) (*models.Trip, error) {
	var trip *models.Trip
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(documents.CollectionTrips, tripID)
		if err != nil {
			return err
		}
		trip = documents.DecodeTrip(snap)
		if !trip.IsParticipant(subject.UserID) && !subject.IsAdmin() {
			return ErrNotParticipant
		}
		if trip.Status.IsTerminal() {
			return fmt.Errorf("%w: trip is already %s", ErrStateConflict, trip.Status)
		}

		now := s.now().UTC()
		trip.Status = status
		trip.UpdatedAt = now
		updates := []docstore.Update{
			{Path: documents.FieldStatus, Value: string(status)},
			{Path: documents.FieldUpdatedAt, Value: now},
		}
		if status == models.TripStatusCompleted {
			trip.CompletedAt = &now
			updates = append(updates, docstore.Update{Path: documents.FieldCompletedAt, Value: now})
		}
		return tx.Update(documents.CollectionTrips, tripID, updates)
	})
	if err != nil {
		if errors.Is(err, ErrNotParticipant) || errors.Is(err, ErrStateConflict) {
			return nil, err
		}
		return nil, storeFailure("update trip status", err)
	}

	if s.location != nil {
		if err := s.location.StopForTrip(ctx, tripID); err != nil {
			s.logger.WithTripID(tripID).WithError(err).Error("Failed to stop trip location sharing")
		}
	}

	s.logger.LogTripEvent(tripID, "trip_"+string(status), map[string]interface{}{"by": subject.UserID})
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.New(eventType, tripID, trip)); err != nil {
			s.logger.WithError(err).Warn("Failed to publish trip event")
		}
	}
	return trip, nil
}

func (s *tripService) RateTrip(ctx context.Context, subject models.Subject, tripID string, rating int, review string) error {
	if rating < 1 || rating > 5 {
		return validationError("rating must be between 1 and 5")
	}
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return storeFailure("get trip", err)
	}
	if !subject.Is(trip.CustomerID) {
		return fmt.Errorf("%w: only the customer can rate a trip", ErrPermissionDenied)
	}
	if !trip.Status.IsTerminal() {
		return fmt.Errorf("%w: trip is still active", ErrStateConflict)
	}

	if err := s.tripRepo.Update(ctx, tripID, map[string]interface{}{
		documents.FieldRating: rating,
		documents.FieldReview: strings.TrimSpace(review),
	}); err != nil {
		return storeFailure("rate trip", err)
	}
	s.logger.LogTripEvent(tripID, "trip_rated", map[string]interface{}{"rating": rating})
	return nil
}
