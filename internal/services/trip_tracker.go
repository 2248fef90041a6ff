package services

import (
	"context"
	"fmt"
	"sync"

	"carhire/internal/models"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/logger"
)

// Progress and ETA are display heuristics keyed by who is sharing, not routing data.
const (
	ProgressBothSharing     = 75
	ProgressDriverSharing   = 65
	ProgressCustomerSharing = 35
	ProgressNoneSharing     = 10
)

var etaBySharing = map[[2]bool]string{
	{true, true}:   "5-10 min",
	{true, false}:  "10-15 min",
	{false, true}:  "15-20 min",
	{false, false}: "Calculating...",
}

// DeriveTripView computes the tracking view from the latest state of the three
// sources. Locations that are not live are reported as absent.
func DeriveTripView(trip *models.Trip, driverLoc, customerLoc *models.UserLocation) models.TripView {
	driver := driverLoc.Live()
	customer := customerLoc.Live()
	view := models.TripView{
		Trip:             trip,
		DriverLocation:   driver,
		CustomerLocation: customer,
		DriverSharing:    driver != nil,
		CustomerSharing:  customer != nil,
	}

	switch {
	case view.DriverSharing && view.CustomerSharing:
		view.Progress = ProgressBothSharing
	case view.DriverSharing:
		view.Progress = ProgressDriverSharing
	case view.CustomerSharing:
		view.Progress = ProgressCustomerSharing
	default:
		view.Progress = ProgressNoneSharing
	}
	view.ETA = etaBySharing[[2]bool{view.DriverSharing, view.CustomerSharing}]
	return view
}

type TripTracker interface {
	// Subscribe starts the trip, driver and customer listeners. Empty participant
	// ids are taken from the trip.
	Subscribe(ctx context.Context, subject models.Subject, tripID, driverID, customerID string) (*TripSubscription, error)
}

type tripTracker struct {
	tripRepo interfaces.TripRepository
	userRepo interfaces.UserRepository
	logger   *logger.Logger
}

func NewTripTracker(tripRepo interfaces.TripRepository, userRepo interfaces.UserRepository, log *logger.Logger) TripTracker {
	return &tripTracker{tripRepo: tripRepo, userRepo: userRepo, logger: log}
}

func (t *tripTracker) Subscribe(ctx context.Context, subject models.Subject, tripID, driverID, customerID string) (*TripSubscription, error) {
	trip, err := t.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, storeFailure("get trip", err)
	}
	if trip == nil {
		return nil, notFound("trip")
	}
	if !trip.IsParticipant(subject.UserID) && !subject.IsAdmin() {
		return nil, ErrNotParticipant
	}
	if driverID == "" {
		driverID = trip.DriverID
	}
	if customerID == "" {
		customerID = trip.CustomerID
	}
	if driverID != trip.DriverID || customerID != trip.CustomerID {
		return nil, validationError("participants do not match trip %s", tripID)
	}

	sub := newTripSubscription(tripID)

	tripWatch, err := t.tripRepo.Watch(ctx, tripID)
	if err != nil {
		return nil, storeFailure("watch trip", err)
	}
	driverWatch, err := t.userRepo.Watch(ctx, driverID)
	if err != nil {
		tripWatch.Stop()
		return nil, storeFailure("watch driver", err)
	}
	customerWatch, err := t.userRepo.Watch(ctx, customerID)
	if err != nil {
		tripWatch.Stop()
		driverWatch.Stop()
		return nil, storeFailure("watch customer", err)
	}
	sub.stops = []func(){tripWatch.Stop, driverWatch.Stop, customerWatch.Stop}

	log := t.logger.WithTripID(tripID)
	sub.wg.Add(3)
	go func() {
		defer sub.wg.Done()
		for ch := range tripWatch.Changes() {
			if ch.Err != nil {
				log.WithError(ch.Err).Warn("Trip listener ended")
				sub.fail(ch.Err)
				return
			}
			sub.update(func(st *trackerState) { st.trip = ch.Value })
		}
	}()
	go func() {
		defer sub.wg.Done()
		for ch := range driverWatch.Changes() {
			if ch.Err != nil {
				log.WithError(ch.Err).Warn("Driver listener ended")
				return
			}
			sub.update(func(st *trackerState) { st.driver = userLocation(ch.Value) })
		}
	}()
	go func() {
		defer sub.wg.Done()
		for ch := range customerWatch.Changes() {
			if ch.Err != nil {
				log.WithError(ch.Err).Warn("Customer listener ended")
				return
			}
			sub.update(func(st *trackerState) { st.customer = userLocation(ch.Value) })
		}
	}()

	return sub, nil
}

func userLocation(u *models.User) *models.UserLocation {
	if u == nil {
		return nil
	}
	return u.Location
}

type trackerState struct {
	trip     *models.Trip
	driver   *models.UserLocation
	customer *models.UserLocation
}

// TripSubscription delivers the latest TripView. A consumer that falls behind
// receives only the most recent view.
type TripSubscription struct {
	TripID string

	mu    sync.Mutex
	state trackerState
	views chan models.TripView
	err   error

	stops []func()
	wg    sync.WaitGroup
	once  sync.Once
	done  chan struct{}
}

func newTripSubscription(tripID string) *TripSubscription {
	return &TripSubscription{
		TripID: tripID,
		views:  make(chan models.TripView, 1),
		done:   make(chan struct{}),
	}
}

func (s *TripSubscription) Views() <-chan models.TripView {
	return s.views
}

// Done is closed after Unsubscribe.
func (s *TripSubscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the trip listener ended, if it failed.
func (s *TripSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *TripSubscription) update(apply func(*trackerState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(&s.state)
	view := DeriveTripView(s.state.trip, s.state.driver, s.state.customer)

	select {
	case <-s.views:
	default:
	}
	s.views <- view
}

func (s *TripSubscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = fmt.Errorf("trip listener: %w", err)
	}
}

// Unsubscribe stops all three listeners and waits for them. It is idempotent.
func (s *TripSubscription) Unsubscribe() {
	s.once.Do(func() {
		for _, stop := range s.stops {
			stop()
		}
		s.wg.Wait()
		close(s.done)
	})
	<-s.done
}
