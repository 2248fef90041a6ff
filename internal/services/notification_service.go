package services

import (
	"context"
	"errors"
	"time"

	"carhire/internal/models"
	"carhire/internal/repositories/documents"
	"carhire/internal/repositories/interfaces"
	"carhire/internal/utils"
	"carhire/pkg/logger"
	"carhire/pkg/push"
	"carhire/pkg/websocket"
)

// Pusher delivers a push notification to a device platform. *push.Router satisfies it.
type Pusher interface {
	Send(ctx context.Context, platform string, request *push.NotificationRequest) (*push.NotificationResponse, error)
}

// UserMessenger fans a frame out to every live connection of a user.
// *websocket.Hub satisfies it.
type UserMessenger interface {
	SendToUser(userID string, message websocket.Message)
}

type NotificationService interface {
	// Notify appends the notification to the user's list and delivers it live and
	// by push. Only the append can fail; delivery is best-effort.
	Notify(ctx context.Context, userID string, notification models.Notification) error
	// Alert delivers a transient notification without storing it.
	Alert(ctx context.Context, userID string, notification models.Notification, data map[string]string)
}

type notificationService struct {
	userRepo  interfaces.UserRepository
	pusher    Pusher
	messenger UserMessenger
	logger    *logger.Logger
	timeout   time.Duration
}

func NewNotificationService(userRepo interfaces.UserRepository, pusher Pusher, messenger UserMessenger, log *logger.Logger) NotificationService {
	return &notificationService{
		userRepo:  userRepo,
		pusher:    pusher,
		messenger: messenger,
		logger:    log,
		timeout:   5 * time.Second,
	}
}

func (s *notificationService) Notify(ctx context.Context, userID string, notification models.Notification) error {
	if err := s.userRepo.AddNotification(ctx, userID, notification); err != nil {
		return storeFailure("add notification", err)
	}
	s.Alert(ctx, userID, notification, nil)
	return nil
}

func (s *notificationService) Alert(ctx context.Context, userID string, notification models.Notification, data map[string]string) {
	if s.messenger != nil {
		s.messenger.SendToUser(userID, websocket.NewMessage(utils.WSTypeNotification, notification))
	}
	if s.pusher == nil {
		return
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || user == nil || user.PushToken == "" {
		return
	}

	payload := map[string]string{"type": string(notification.Type), "notification_id": notification.ID}
	for k, v := range data {
		payload[k] = v
	}
	req := &push.NotificationRequest{
		Token:       user.PushToken,
		Title:       notification.Title,
		Body:        notification.Message,
		Data:        payload,
		Sound:       "default",
		Priority:    push.PriorityHigh,
		CollapseKey: string(notification.Type),
	}

	// Push delivery outlives the request that caused it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_, err := s.pusher.Send(ctx, string(user.PushPlatform), req)
		switch {
		case err == nil, errors.Is(err, push.ErrNoToken):
		case errors.Is(err, push.ErrTokenUnregistered):
			s.forgetToken(ctx, userID, req.Token)
		default:
			s.logger.WithUserID(userID).WithError(err).Warn("Push delivery failed")
		}
	}()
}

// forgetToken clears a token the platform rejected, unless the device has
// registered a newer one meanwhile.
func (s *notificationService) forgetToken(ctx context.Context, userID, token string) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || user == nil || user.PushToken != token {
		return
	}
	if err := s.userRepo.Update(ctx, userID, map[string]interface{}{documents.FieldPushToken: ""}); err != nil {
		s.logger.WithUserID(userID).WithError(err).Warn("Failed to clear unregistered push token")
		return
	}
	s.logger.WithUserID(userID).Info("Cleared unregistered push token")
}
