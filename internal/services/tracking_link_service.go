package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"carhire/internal/config"
	"carhire/internal/models"
	"carhire/internal/repositories/interfaces"
	"carhire/internal/utils"
	"carhire/pkg/logger"
)

type TrackingLinkService interface {
	// CreateLink issues a shareable link to the subject's live location.
	CreateLink(ctx context.Context, subject models.Subject) (*models.TrackingLink, error)
	Revoke(ctx context.Context, subject models.Subject, token string) error
	// Validate returns ErrTrackingLinkExpired for unknown, mismatched and expired
	// tokens alike.
	Validate(ctx context.Context, userID, token string) (*models.TrackingToken, error)
	// Watch streams the public view of userID's location while the token is valid.
	Watch(ctx context.Context, userID, token string) (*PublicLocationSubscription, error)
}

type trackingLinkService struct {
	tokenRepo interfaces.TrackingTokenRepository
	userRepo  interfaces.UserRepository
	ttl       time.Duration
	publicURL string
	logger    *logger.Logger
	now       func() time.Time
}

func NewTrackingLinkService(cfg *config.Config, tokenRepo interfaces.TrackingTokenRepository, userRepo interfaces.UserRepository, log *logger.Logger) TrackingLinkService {
	return &trackingLinkService{
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		ttl:       cfg.Tracking.LinkTTL,
		publicURL: strings.TrimRight(cfg.Tracking.PublicURL, "/"),
		logger:    log,
		now:       time.Now,
	}
}

func (s *trackingLinkService) CreateLink(ctx context.Context, subject models.Subject) (*models.TrackingLink, error) {
	if subject.UserID == "" {
		return nil, fmt.Errorf("%w: authentication required", ErrPermissionDenied)
	}
	now := s.now().UTC()
	token := &models.TrackingToken{
		Token:     utils.GenerateShareToken(),
		UserID:    subject.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return nil, storeFailure("create tracking token", err)
	}

	s.logger.LogLocationEvent(subject.UserID, "tracking_link_created", map[string]interface{}{
		"expires_at": token.ExpiresAt,
	})
	return &models.TrackingLink{
		Token:     token.Token,
		URL:       fmt.Sprintf("%s/track/%s/%s", s.publicURL, subject.UserID, token.Token),
		ExpiresAt: token.ExpiresAt,
	}, nil
}

func (s *trackingLinkService) Revoke(ctx context.Context, subject models.Subject, token string) error {
	t, err := s.tokenRepo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil
		}
		return storeFailure("get tracking token", err)
	}
	if !subject.Is(t.UserID) && !subject.IsAdmin() {
		return fmt.Errorf("%w: link belongs to another user", ErrPermissionDenied)
	}
	if err := s.tokenRepo.Delete(ctx, token); err != nil {
		return storeFailure("delete tracking token", err)
	}
	return nil
}

func (s *trackingLinkService) Validate(ctx context.Context, userID, token string) (*models.TrackingToken, error) {
	if userID == "" || token == "" {
		return nil, ErrTrackingLinkExpired
	}
	t, err := s.tokenRepo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrTrackingLinkExpired
		}
		return nil, storeFailure("get tracking token", err)
	}
	if !t.ValidFor(userID, s.now()) {
		return nil, ErrTrackingLinkExpired
	}
	return t, nil
}

func (s *trackingLinkService) Watch(ctx context.Context, userID, token string) (*PublicLocationSubscription, error) {
	t, err := s.Validate(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	watch, err := s.userRepo.Watch(ctx, userID)
	if err != nil {
		return nil, storeFailure("watch user", err)
	}

	sub := &PublicLocationSubscription{
		views: make(chan models.PublicLocationView, 1),
		done:  make(chan struct{}),
		stop:  watch.Stop,
	}
	// The stream ends at the token's expiry even if the viewer stays connected.
	expiry := time.NewTimer(t.ExpiresAt.Sub(s.now()))

	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		defer close(sub.views)
		defer expiry.Stop()
		for {
			select {
			case ch, ok := <-watch.Changes():
				if !ok {
					return
				}
				if ch.Err != nil {
					sub.fail(ch.Err)
					return
				}
				sub.publish(PublicView(userID, ch.Value))
			case <-expiry.C:
				sub.fail(ErrTrackingLinkExpired)
				watch.Stop()
				return
			}
		}
	}()
	return sub, nil
}

// PublicView hides everything but the name and the live position.
func PublicView(userID string, user *models.User) models.PublicLocationView {
	view := models.PublicLocationView{UserID: userID}
	if user == nil {
		return view
	}
	view.Name = user.DisplayName()
	if loc := user.Location.Live(); loc != nil {
		view.Sharing = true
		view.Location = &models.UserLocation{
			Lat:            loc.Lat,
			Lng:            loc.Lng,
			Accuracy:       loc.Accuracy,
			Address:        loc.Address,
			Timestamp:      loc.Timestamp,
			IsSharing:      true,
			HasCoordinates: true,
		}
	}
	return view
}

// PublicLocationSubscription delivers the latest public view of one user.
type PublicLocationSubscription struct {
	mu    sync.Mutex
	views chan models.PublicLocationView
	err   error

	stop func()
	wg   sync.WaitGroup
	once sync.Once
	done chan struct{}
}

// Views is closed when the stream ends, at link expiry or when the listener fails.
func (s *PublicLocationSubscription) Views() <-chan models.PublicLocationView {
	return s.views
}

// Err is ErrTrackingLinkExpired once the link has run out.
func (s *PublicLocationSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *PublicLocationSubscription) publish(view models.PublicLocationView) {
	select {
	case <-s.views:
	default:
	}
	s.views <- view
}

func (s *PublicLocationSubscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *PublicLocationSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.stop()
		s.wg.Wait()
		close(s.done)
	})
	<-s.done
}
