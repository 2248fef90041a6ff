package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"carhire/internal/config"
	"carhire/internal/models"
	"carhire/internal/repositories/documents"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/geolocation"
	"carhire/pkg/logger"
	"carhire/pkg/maps"
)

// LocationService publishes a user's device position to their user document and,
// during a trip, to their side of the trip document.
type LocationService interface {
	StartSharing(ctx context.Context, subject models.Subject, subjectID, tripID string, source geolocation.Source) (*SharingSession, error)
	StopSharing(ctx context.Context, subject models.Subject, subjectID, tripID string) error

	// Resume restarts sharing from the persisted flag. It returns nil when the
	// subject was not sharing.
	Resume(ctx context.Context, subject models.Subject, source geolocation.Source) (*SharingSession, error)
	// Suspend ends the watch of a disconnected device and keeps the persisted flag
	// so the next connection can resume.
	Suspend(userID string)
	// StopForTrip ends sharing tied to a trip that reached a terminal state.
	StopForTrip(ctx context.Context, tripID string) error

	Active(userID string) bool
}

// SharingSession is one running position watch.
type SharingSession struct {
	UserID string
	TripID string

	side   models.LocationSide
	source geolocation.Source
	handle geolocation.WatchHandle

	mu   sync.Mutex
	err  error
	done chan struct{}
	once sync.Once
}

func newSharingSession(userID, tripID string, side models.LocationSide, source geolocation.Source) *SharingSession {
	return &SharingSession{
		UserID: userID,
		TripID: tripID,
		side:   side,
		source: source,
		done:   make(chan struct{}),
	}
}

// Done is closed when the watch ends, whether stopped or failed.
func (s *SharingSession) Done() <-chan struct{} {
	return s.done
}

// Err is the geolocation error that ended the session, or nil.
func (s *SharingSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *SharingSession) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		handle := s.handle
		s.mu.Unlock()
		s.source.ClearWatch(handle)
		close(s.done)
	})
}

type locationService struct {
	userRepo     interfaces.UserRepository
	tripRepo     interfaces.TripRepository
	geocoder     maps.Geocoder
	state        SharingStateStore
	logger       *logger.Logger
	opts         geolocation.Options
	placeholder  string
	writeTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*SharingSession
}

func NewLocationService(
	cfg *config.Config,
	userRepo interfaces.UserRepository,
	tripRepo interfaces.TripRepository,
	geocoder maps.Geocoder,
	state SharingStateStore,
	log *logger.Logger,
) LocationService {
	return &locationService{
		userRepo: userRepo,
		tripRepo: tripRepo,
		geocoder: geocoder,
		state:    state,
		logger:   log,
		opts: geolocation.Options{
			EnableHighAccuracy: cfg.Location.HighAccuracy,
			Timeout:            cfg.Location.WatchTimeout,
			MaximumAge:         cfg.Location.MaximumAge,
		},
		placeholder:  cfg.Maps.PlaceholderAddress,
		writeTimeout: 10 * time.Second,
		now:          time.Now,
		sessions:     make(map[string]*SharingSession),
	}
}

func (s *locationService) StartSharing(ctx context.Context, subject models.Subject, subjectID, tripID string, source geolocation.Source) (*SharingSession, error) {
	if !subject.Is(subjectID) {
		return nil, fmt.Errorf("%w: cannot share another user's location", ErrPermissionDenied)
	}

	user, err := s.userRepo.GetByID(ctx, subjectID)
	if err != nil {
		return nil, storeFailure("get user", err)
	}
	if user == nil {
		return nil, notFound("user")
	}
	if (subject.IsDriver() || user.Role == models.RoleDriver) && !user.HasVerifiedContact() {
		return nil, ErrMissingContactInfo
	}

	var side models.LocationSide
	if tripID != "" {
		trip, err := s.tripRepo.GetByID(ctx, tripID)
		if err != nil {
			return nil, storeFailure("get trip", err)
		}
		if trip == nil {
			return nil, notFound("trip")
		}
		var ok bool
		if side, ok = trip.SideOf(subjectID); !ok {
			return nil, ErrNotParticipant
		}
		if trip.Status != models.TripStatusActive {
			return nil, ErrTripNotActive
		}
	}

	// Only one watch per subject: a second start replaces the first.
	s.detach(subjectID, nil)

	pos, err := source.CurrentPosition(ctx, s.opts)
	if err != nil {
		lerr := locationError(err)
		s.logger.WithUserID(subjectID).WithError(err).Warn("Initial position unavailable")
		s.markStopped(subjectID, tripID, side)
		return nil, lerr
	}

	loc := &models.UserLocation{
		Lat:            pos.Lat,
		Lng:            pos.Lng,
		Accuracy:       pos.Accuracy,
		Address:        s.reverseGeocode(ctx, pos),
		Timestamp:      s.stamp(pos),
		IsSharing:      true,
		HasCoordinates: true,
	}
	if user.VehicleID != "" {
		vid := user.VehicleID
		loc.VehicleID = &vid
	}

	if err := s.userRepo.Update(ctx, subjectID, map[string]interface{}{
		documents.FieldLocation: documents.EncodeLocation(loc),
	}); err != nil {
		return nil, storeFailure("write location", err)
	}
	if tripID != "" {
		if err := s.tripRepo.Update(ctx, tripID, map[string]interface{}{
			string(side): documents.EncodeLocation(loc),
		}); err != nil {
			s.markStopped(subjectID, tripID, side)
			return nil, storeFailure("mirror trip location", err)
		}
	}

	session := newSharingSession(subjectID, tripID, side, source)
	handle, err := source.WatchPosition(s.opts,
		func(p geolocation.Position) { s.onPosition(session, p) },
		func(perr *geolocation.PositionError) { s.onWatchError(session, perr) })
	if err != nil {
		s.markStopped(subjectID, tripID, side)
		return nil, locationError(err)
	}
	session.mu.Lock()
	session.handle = handle
	session.mu.Unlock()

	s.mu.Lock()
	select {
	case <-session.done:
		s.mu.Unlock()
		return nil, session.Err()
	default:
		s.sessions[subjectID] = session
	}
	s.mu.Unlock()

	if err := s.state.Save(ctx, SharingState{UserID: subjectID, TripID: tripID, StartedAt: s.now().UTC()}); err != nil {
		s.logger.WithUserID(subjectID).WithError(err).Warn("Failed to persist sharing state")
	}

	s.logger.LogLocationEvent(subjectID, "sharing_started", map[string]interface{}{"trip_id": tripID})
	return session, nil
}

func (s *locationService) StopSharing(ctx context.Context, subject models.Subject, subjectID, tripID string) error {
	if !subject.Is(subjectID) {
		return fmt.Errorf("%w: cannot stop another user's location", ErrPermissionDenied)
	}

	if session := s.sessionOf(subjectID); session != nil && tripID == "" {
		tripID = session.TripID
	}
	if tripID == "" {
		if state, err := s.state.Load(ctx, subjectID); err == nil && state != nil {
			tripID = state.TripID
		}
	}

	var side models.LocationSide
	if tripID != "" {
		trip, err := s.tripRepo.GetByID(ctx, tripID)
		switch {
		case err != nil && !errors.Is(err, interfaces.ErrNotFound):
			return storeFailure("get trip", err)
		case trip != nil:
			var ok bool
			if side, ok = trip.SideOf(subjectID); !ok {
				return ErrNotParticipant
			}
		}
	}

	// The trip is resolved before the watch ends so a rejected stop leaves the
	// session untouched.
	s.detach(subjectID, nil)
	if err := s.clearSharing(ctx, subjectID, tripID, side); err != nil {
		return err
	}
	if err := s.state.Clear(ctx, subjectID); err != nil {
		s.logger.WithUserID(subjectID).WithError(err).Warn("Failed to clear sharing state")
	}

	s.logger.LogLocationEvent(subjectID, "sharing_stopped", map[string]interface{}{"trip_id": tripID})
	return nil
}

func (s *locationService) Resume(ctx context.Context, subject models.Subject, source geolocation.Source) (*SharingSession, error) {
	state, err := s.state.Load(ctx, subject.UserID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	session, err := s.StartSharing(ctx, subject, subject.UserID, state.TripID, source)
	if err != nil {
		if errors.Is(err, ErrTripNotActive) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotParticipant) {
			_ = s.state.Clear(ctx, subject.UserID)
		}
		return nil, err
	}
	s.logger.LogLocationEvent(subject.UserID, "sharing_resumed", map[string]interface{}{"trip_id": state.TripID})
	return session, nil
}

func (s *locationService) Suspend(userID string) {
	if session := s.detach(userID, nil); session != nil {
		s.logger.LogLocationEvent(userID, "sharing_suspended", map[string]interface{}{"trip_id": session.TripID})
	}
}

func (s *locationService) StopForTrip(ctx context.Context, tripID string) error {
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return storeFailure("get trip", err)
	}
	if trip == nil {
		return notFound("trip")
	}

	for _, userID := range []string{trip.DriverID, trip.CustomerID} {
		if userID == "" {
			continue
		}
		side, _ := trip.SideOf(userID)
		tied := false
		if session := s.sessionOf(userID); session != nil && session.TripID == tripID {
			s.detach(userID, session)
			tied = true
		}
		if state, err := s.state.Load(ctx, userID); err == nil && state != nil && state.TripID == tripID {
			_ = s.state.Clear(ctx, userID)
			tied = true
		}

		if tied {
			err = s.clearSharing(ctx, userID, tripID, side)
		} else {
			err = s.tripRepo.Update(ctx, tripID, map[string]interface{}{
				documents.Path(string(side), documents.FieldIsSharing): false,
			})
		}
		if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
			return storeFailure("stop trip sharing", err)
		}
	}

	s.logger.LogTripEvent(tripID, "sharing_stopped", nil)
	return nil
}

func (s *locationService) Active(userID string) bool {
	return s.sessionOf(userID) != nil
}

func (s *locationService) sessionOf(userID string) *SharingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

// detach removes and ends the user's session. When only is set, the session is
// removed only if it is still the registered one.
func (s *locationService) detach(userID string, only *SharingSession) *SharingSession {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	if ok && (only == nil || only == session) {
		delete(s.sessions, userID)
	} else {
		session = nil
	}
	s.mu.Unlock()

	if session != nil {
		session.finish(nil)
	}
	return session
}

func (s *locationService) onPosition(session *SharingSession, pos geolocation.Position) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	fields := map[string]interface{}{
		documents.FieldLat:       pos.Lat,
		documents.FieldLng:       pos.Lng,
		documents.FieldAccuracy:  nil,
		documents.FieldAddress:   s.reverseGeocode(ctx, pos),
		documents.FieldTimestamp: s.stamp(pos),
	}
	if pos.Accuracy != nil {
		fields[documents.FieldAccuracy] = *pos.Accuracy
	}

	if err := s.userRepo.Update(ctx, session.UserID, prefixed(documents.FieldLocation, fields)); err != nil {
		s.logger.WithUserID(session.UserID).WithError(err).Error("Failed to publish location update")
		return
	}
	if session.TripID != "" {
		if err := s.tripRepo.Update(ctx, session.TripID, prefixed(string(session.side), fields)); err != nil {
			s.logger.WithUserID(session.UserID).WithTripID(session.TripID).WithError(err).Error("Failed to mirror location update")
		}
	}
}

func (s *locationService) onWatchError(session *SharingSession, perr *geolocation.PositionError) {
	lerr := locationError(perr)
	session.finish(lerr)

	s.mu.Lock()
	if s.sessions[session.UserID] == session {
		delete(s.sessions, session.UserID)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	s.markStopped(session.UserID, session.TripID, session.side)
	if err := s.state.Clear(ctx, session.UserID); err != nil {
		s.logger.WithUserID(session.UserID).WithError(err).Warn("Failed to clear sharing state")
	}

	s.logger.LogLocationEvent(session.UserID, "sharing_failed", map[string]interface{}{
		"trip_id": session.TripID,
		"code":    perr.Code.String(),
	})
}

// markStopped clears isSharing after a failure, logging instead of returning errors.
func (s *locationService) markStopped(userID, tripID string, side models.LocationSide) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.clearSharing(ctx, userID, tripID, side); err != nil {
		s.logger.WithUserID(userID).WithError(err).Error("Failed to mark sharing stopped")
	}
}

func (s *locationService) clearSharing(ctx context.Context, userID, tripID string, side models.LocationSide) error {
	err := s.userRepo.Update(ctx, userID, map[string]interface{}{
		documents.Path(documents.FieldLocation, documents.FieldIsSharing): false,
	})
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return storeFailure("clear user sharing", err)
	}
	if tripID == "" || side == "" {
		return nil
	}
	err = s.tripRepo.Update(ctx, tripID, map[string]interface{}{
		documents.Path(string(side), documents.FieldIsSharing): false,
	})
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return storeFailure("clear trip sharing", err)
	}
	return nil
}

// reverseGeocode never fails: any provider error yields the placeholder address.
func (s *locationService) reverseGeocode(ctx context.Context, pos geolocation.Position) string {
	if s.geocoder == nil {
		return s.placeholder
	}
	resp, err := s.geocoder.ReverseGeocode(ctx, pos.Lat, pos.Lng)
	if err == nil {
		var name string
		if name, err = maps.DisplayName(resp); err == nil {
			return name
		}
	}
	s.logger.WithError(err).Warn("Reverse geocoding failed, using placeholder address")
	return s.placeholder
}

func (s *locationService) stamp(pos geolocation.Position) time.Time {
	if pos.Timestamp.IsZero() {
		return s.now().UTC()
	}
	return pos.Timestamp.UTC()
}

func prefixed(parent string, fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[documents.Path(parent, k)] = v
	}
	return out
}

func locationError(err error) error {
	var perr *geolocation.PositionError
	if !errors.As(err, &perr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrLocationTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrPositionUnavailable, err)
	}
	switch perr.Code {
	case geolocation.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrLocationPermissionDenied, perr.Message)
	case geolocation.Timeout:
		return fmt.Errorf("%w: %s", ErrLocationTimeout, perr.Message)
	}
	return fmt.Errorf("%w: %s", ErrPositionUnavailable, perr.Message)
}
