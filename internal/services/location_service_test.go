package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"carhire/internal/models"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/geolocation"
)

type failingTripUpdates struct {
	interfaces.TripRepository
	err error
}

func (r failingTripUpdates) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.err
}

func newLocationFixture(t *testing.T) (*fixture, *locationService) {
	t.Helper()
	f := newFixture(t)
	svc := NewLocationService(f.cfg, f.users, f.trips, nil, NewSharingStateStore(f.cache, time.Hour), f.log).(*locationService)
	return f, svc
}

func sourceAt(lat, lng float64) *geolocation.StreamSource {
	src := geolocation.NewStreamSource()
	src.Push(geolocation.Position{Lat: lat, Lng: lng})
	return src
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// ──────────────────────────────────────────────
// Start
// ──────────────────────────────────────────────

func TestStartSharing_WritesLiveLocationAndTripSide(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1", Name: "Cara"})
	f.seedUser(t, &models.User{ID: "d1", Role: models.RoleDriver, ContactPhone: "+15550001", ContactPhoneVerified: true})
	f.seedTrip(t, &models.Trip{ID: "t1", DriverID: "d1", CustomerID: "c1", PickupLocation: "A", Destination: "B"})

	src := sourceAt(51.5, -0.12)
	session, err := svc.StartSharing(context.Background(), customer("c1"), "c1", "t1", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Suspend("c1")

	loc := f.user(t, "c1").Location
	if !loc.IsLive() || loc.Lat != 51.5 || loc.Lng != -0.12 {
		t.Fatalf("expected live location at 51.5,-0.12, got %+v", loc)
	}
	if loc.Address != "Location unavailable" {
		t.Errorf("expected placeholder address without a geocoder, got %q", loc.Address)
	}
	if side := f.trip(t, "t1").CustomerLocation; !side.IsLive() {
		t.Errorf("expected customer side of trip to be live, got %+v", side)
	}
	if session.TripID != "t1" || !svc.Active("c1") {
		t.Errorf("expected active session for t1")
	}
}

func TestStartSharing_RejectsOtherSubject(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})

	_, err := svc.StartSharing(context.Background(), customer("c2"), "c1", "", sourceAt(1, 1))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestStartSharing_DriverWithoutVerifiedContact(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "d1", Role: models.RoleDriver, ContactPhone: "+15550001"})

	_, err := svc.StartSharing(context.Background(), driver("d1"), "d1", "", sourceAt(1, 1))
	if !errors.Is(err, ErrMissingContactInfo) {
		t.Fatalf("expected ErrMissingContactInfo, got %v", err)
	}
	if loc := f.user(t, "d1").Location; loc.IsLive() {
		t.Errorf("expected no live location, got %+v", loc)
	}
}

func TestStartSharing_NonParticipantAndInactiveTrip(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})
	f.seedUser(t, &models.User{ID: "c9"})
	f.seedTrip(t, &models.Trip{ID: "t1", DriverID: "d1", CustomerID: "c1"})
	f.seedTrip(t, &models.Trip{ID: "t2", DriverID: "d1", CustomerID: "c1", Status: models.TripStatusCompleted})

	ctx := context.Background()
	if _, err := svc.StartSharing(ctx, customer("c9"), "c9", "t1", sourceAt(1, 1)); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := svc.StartSharing(ctx, customer("c1"), "c1", "t2", sourceAt(1, 1)); !errors.Is(err, ErrTripNotActive) {
		t.Errorf("expected ErrTripNotActive, got %v", err)
	}
}

func TestStartSharing_MirrorFailureMarksStopped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})
	f.seedTrip(t, &models.Trip{ID: "t1", DriverID: "d1", CustomerID: "c1"})
	trips := failingTripUpdates{TripRepository: f.trips, err: errors.New("unavailable")}
	svc := NewLocationService(f.cfg, f.users, trips, nil, NewSharingStateStore(f.cache, time.Hour), f.log)

	src := sourceAt(5, 5)
	if _, err := svc.StartSharing(context.Background(), customer("c1"), "c1", "t1", src); err == nil {
		t.Fatal("expected an error")
	}
	if loc := f.user(t, "c1").Location; loc == nil || loc.IsSharing {
		t.Errorf("expected user isSharing false, got %+v", loc)
	}
	if svc.Active("c1") || src.ActiveWatches() != 0 {
		t.Error("expected no watch after a failed start")
	}
}

func TestStartSharing_PermissionDeniedMarksStopped(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1", Location: &models.UserLocation{Lat: 1, Lng: 1, IsSharing: true, HasCoordinates: true}})

	src := geolocation.NewStreamSource()
	src.Fail(&geolocation.PositionError{Code: geolocation.PermissionDenied, Message: "user denied"})

	_, err := svc.StartSharing(context.Background(), customer("c1"), "c1", "", src)
	if !errors.Is(err, ErrLocationPermissionDenied) {
		t.Fatalf("expected ErrLocationPermissionDenied, got %v", err)
	}
	if loc := f.user(t, "c1").Location; loc.IsSharing {
		t.Errorf("expected isSharing false after denial")
	}
}

// ──────────────────────────────────────────────
// Watch
// ──────────────────────────────────────────────

func TestSharing_WatchUpdatesThenFailsOnPositionError(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})

	src := sourceAt(10, 10)
	session, err := svc.StartSharing(context.Background(), customer("c1"), "c1", "", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src.Push(geolocation.Position{Lat: 10.5, Lng: 10.25})
	eventually(t, func() bool {
		loc := f.user(t, "c1").Location
		return loc != nil && loc.Lat == 10.5 && loc.Lng == 10.25
	}, "timed out waiting for watched position")

	src.Fail(&geolocation.PositionError{Code: geolocation.PositionUnavailable})
	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to end")
	}
	if !errors.Is(session.Err(), ErrPositionUnavailable) {
		t.Errorf("expected ErrPositionUnavailable, got %v", session.Err())
	}
	eventually(t, func() bool { return !f.user(t, "c1").Location.IsSharing }, "expected isSharing false after watch error")
	if svc.Active("c1") {
		t.Errorf("expected no active session")
	}
}

func TestStartSharing_SecondStartReplacesWatch(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})

	src := sourceAt(1, 1)
	ctx := context.Background()
	first, err := svc.StartSharing(ctx, customer("c1"), "c1", "", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.StartSharing(ctx, customer("c1"), "c1", "", src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Suspend("c1")

	select {
	case <-first.Done():
	default:
		t.Fatal("expected first session to end")
	}
	eventually(t, func() bool { return src.ActiveWatches() == 1 }, "expected exactly one active watch")
}

// ──────────────────────────────────────────────
// Stop, suspend and resume
// ──────────────────────────────────────────────

func TestStopSharing_IsIdempotent(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})
	f.seedTrip(t, &models.Trip{ID: "t1", DriverID: "d1", CustomerID: "c1"})

	src := sourceAt(5, 5)
	ctx := context.Background()
	if _, err := svc.StartSharing(ctx, customer("c1"), "c1", "t1", src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.StopSharing(ctx, customer("c1"), "c1", ""); err != nil {
			t.Fatalf("stop %d: unexpected error: %v", i+1, err)
		}
	}

	if f.user(t, "c1").Location.IsSharing {
		t.Errorf("expected user isSharing false")
	}
	if side := f.trip(t, "t1").CustomerLocation; side == nil || side.IsSharing {
		t.Errorf("expected customer side isSharing false, got %+v", side)
	}
	eventually(t, func() bool { return src.ActiveWatches() == 0 }, "expected watch to be cleared")
}

func TestStopSharing_ForeignTripLeavesSessionRunning(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})
	f.seedTrip(t, &models.Trip{ID: "t-other", DriverID: "d1", CustomerID: "c2"})

	src := sourceAt(5, 5)
	ctx := context.Background()
	if _, err := svc.StartSharing(ctx, customer("c1"), "c1", "", src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Suspend("c1")

	if err := svc.StopSharing(ctx, customer("c1"), "c1", "t-other"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if !svc.Active("c1") {
		t.Error("expected the session to keep running")
	}
	if src.ActiveWatches() != 1 {
		t.Errorf("expected one watch, got %d", src.ActiveWatches())
	}
	if !f.user(t, "c1").Location.IsLive() {
		t.Error("expected the location to stay live")
	}
	if state, err := svc.state.Load(ctx, "c1"); err != nil || state == nil {
		t.Errorf("expected the resume flag to survive, got %v %v", state, err)
	}
}

func TestSuspendThenResume_RestartsSharing(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})

	ctx := context.Background()
	if _, err := svc.StartSharing(ctx, customer("c1"), "c1", "", sourceAt(2, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Suspend("c1")
	if svc.Active("c1") {
		t.Fatal("expected no active session after suspend")
	}
	if !f.user(t, "c1").Location.IsSharing {
		t.Fatal("expected isSharing to survive a suspend")
	}

	session, err := svc.Resume(ctx, customer("c1"), sourceAt(3, 3))
	if err != nil || session == nil {
		t.Fatalf("expected resumed session, got %v, %v", session, err)
	}
	defer svc.Suspend("c1")
	if loc := f.user(t, "c1").Location; loc.Lat != 3 {
		t.Errorf("expected resumed position 3, got %v", loc.Lat)
	}
}

func TestResume_WithoutFlagIsNoop(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})

	session, err := svc.Resume(context.Background(), customer("c1"), sourceAt(1, 1))
	if err != nil || session != nil {
		t.Fatalf("expected nil session and error, got %v, %v", session, err)
	}
}

func TestStopForTrip_ClearsBothSides(t *testing.T) {
	t.Parallel()

	f, svc := newLocationFixture(t)
	f.seedUser(t, &models.User{ID: "c1"})
	f.seedUser(t, &models.User{ID: "d1", Role: models.RoleDriver, ContactPhone: "+15550001", ContactPhoneVerified: true})
	f.seedTrip(t, &models.Trip{ID: "t1", DriverID: "d1", CustomerID: "c1"})

	ctx := context.Background()
	if _, err := svc.StartSharing(ctx, customer("c1"), "c1", "t1", sourceAt(1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.StartSharing(ctx, driver("d1"), "d1", "t1", sourceAt(2, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.StopForTrip(ctx, "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trip := f.trip(t, "t1")
	if trip.CustomerLocation.IsSharing || trip.DriverLocation.IsSharing {
		t.Errorf("expected both trip sides stopped, got %+v / %+v", trip.CustomerLocation, trip.DriverLocation)
	}
	if svc.Active("c1") || svc.Active("d1") {
		t.Errorf("expected no active sessions")
	}
	if f.user(t, "d1").Location.IsSharing {
		t.Errorf("expected driver isSharing false")
	}
}
