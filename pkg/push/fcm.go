package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMProvider delivers to Android devices through Firebase Cloud Messaging.
type FCMProvider struct {
	client *messaging.Client
}

// NewFCMProvider uses application default credentials when credentialsFile is
// empty.
func NewFCMProvider(ctx context.Context, projectID, credentialsFile string) (*FCMProvider, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	return &FCMProvider{client: client}, nil
}

func (f *FCMProvider) SendNotification(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error) {
	id, err := f.client.Send(ctx, fcmMessage(request))
	if err != nil {
		if messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err) {
			return nil, fmt.Errorf("%w: %w", ErrTokenUnregistered, err)
		}
		return nil, fmt.Errorf("fcm send failed: %w", err)
	}
	return &NotificationResponse{MessageID: id, Token: request.Token}, nil
}

func fcmMessage(request *NotificationRequest) *messaging.Message {
	android := &messaging.AndroidConfig{
		Priority:    "normal",
		CollapseKey: request.CollapseKey,
		Notification: &messaging.AndroidNotification{
			Sound:     request.Sound,
			ChannelID: request.ChannelID,
			Tag:       request.CollapseKey,
		},
	}
	if request.Priority == PriorityHigh {
		android.Priority = "high"
	}
	if request.TTL > 0 {
		ttl := request.TTL
		android.TTL = &ttl
	}

	return &messaging.Message{
		Token:        request.Token,
		Data:         request.Data,
		Notification: &messaging.Notification{Title: request.Title, Body: request.Body},
		Android:      android,
	}
}
