package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"carhire/internal/models"
)

func newTripFixture(t *testing.T) (*fixture, TripService, LocationService) {
	t.Helper()
	f := newFixture(t)
	location := NewLocationService(f.cfg, f.users, f.trips, nil, NewSharingStateStore(f.cache, time.Hour), f.log)
	return f, NewTripService(f.store, f.trips, f.users, location, nil, f.log), location
}

func TestCreateTrip(t *testing.T) {
	t.Parallel()

	f, svc, _ := newTripFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})
	f.seedUser(t, &models.User{ID: "d1", Role: models.RoleDriver})
	ctx := context.Background()

	trip, err := svc.CreateTrip(ctx, customer("c1"), "d1", " Airport ", "Hotel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.Status != models.TripStatusActive || trip.PickupLocation != "Airport" || trip.CustomerID != "c1" {
		t.Errorf("unexpected trip %+v", trip)
	}
	if _, err := svc.CreateTrip(ctx, customer("c1"), "c1", "A", "B"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation when booking a non-driver, got %v", err)
	}
	if _, err := svc.CreateTrip(ctx, customer("c1"), "d1", "", "B"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for missing pickup, got %v", err)
	}
}

func TestCompleteTrip_StopsSharingAndIsTerminal(t *testing.T) {
	t.Parallel()

	f, svc, location := newTripFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})
	f.seedUser(t, &models.User{ID: "d1", Role: models.RoleDriver})
	f.seedTrip(t, &models.Trip{ID: "t1", DriverID: "d1", CustomerID: "c1"})
	ctx := context.Background()

	if _, err := location.StartSharing(ctx, customer("c1"), "c1", "t1", sourceAt(1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trip, err := svc.CompleteTrip(ctx, driver("d1"), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.Status != models.TripStatusCompleted || trip.CompletedAt == nil {
		t.Errorf("expected completed trip with timestamp, got %+v", trip)
	}
	if location.Active("c1") {
		t.Errorf("expected customer sharing to stop with the trip")
	}
	if stored := f.trip(t, "t1"); stored.CustomerLocation.IsSharing {
		t.Errorf("expected customer side stopped")
	}

	if _, err := svc.CancelTrip(ctx, driver("d1"), "t1"); !errors.Is(err, ErrStateConflict) {
		t.Errorf("expected ErrStateConflict on terminal trip, got %v", err)
	}
}

func TestCancelTrip_RequiresParticipant(t *testing.T) {
	t.Parallel()

	f, svc, _ := newTripFixture(t)
	f.seedTrip(t, &models.Trip{ID: "t1", DriverID: "d1", CustomerID: "c1"})

	if _, err := svc.CancelTrip(context.Background(), customer("c9"), "t1"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestRateTrip(t *testing.T) {
	t.Parallel()

	f, svc, _ := newTripFixture(t)
	f.seedTrip(t, &models.Trip{ID: "active", DriverID: "d1", CustomerID: "c1"})
	f.seedTrip(t, &models.Trip{ID: "done", DriverID: "d1", CustomerID: "c1", Status: models.TripStatusCompleted})
	ctx := context.Background()

	if err := svc.RateTrip(ctx, customer("c1"), "active", 5, ""); !errors.Is(err, ErrStateConflict) {
		t.Errorf("expected ErrStateConflict for active trip, got %v", err)
	}
	if err := svc.RateTrip(ctx, driver("d1"), "done", 5, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for driver, got %v", err)
	}
	if err := svc.RateTrip(ctx, customer("c1"), "done", 6, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for rating 6, got %v", err)
	}
	if err := svc.RateTrip(ctx, customer("c1"), "done", 4, " smooth ride "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trip := f.trip(t, "done")
	if trip.Rating == nil || *trip.Rating != 4 || trip.Review != "smooth ride" {
		t.Errorf("expected rating 4 with review, got %v %q", trip.Rating, trip.Review)
	}
}
