package push

import (
	"context"
	"fmt"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNSProvider delivers to iOS devices with token based (.p8) authentication.
type APNSProvider struct {
	client *apns2.Client
	topic  string
}

func NewAPNSProvider(keyFile, keyID, teamID, topic string, production bool) (*APNSProvider, error) {
	authKey, err := token.AuthKeyFromFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{AuthKey: authKey, KeyID: keyID, TeamID: teamID})
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return &APNSProvider{client: client, topic: topic}, nil
}

func (a *APNSProvider) SendNotification(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error) {
	response, err := a.client.PushWithContext(ctx, a.notification(request))
	if err != nil {
		return nil, fmt.Errorf("apns push failed: %w", err)
	}
	if !response.Sent() {
		switch response.Reason {
		case apns2.ReasonUnregistered, apns2.ReasonBadDeviceToken, apns2.ReasonDeviceTokenNotForTopic:
			return nil, fmt.Errorf("%w: apns %s", ErrTokenUnregistered, response.Reason)
		}
		return nil, fmt.Errorf("apns rejected notification: %d %s", response.StatusCode, response.Reason)
	}
	return &NotificationResponse{MessageID: response.ApnsID, Token: request.Token}, nil
}

// notification carries the request data as custom keys next to the alert, which
// is where the app reads thread and trip ids from.
func (a *APNSProvider) notification(request *NotificationRequest) *apns2.Notification {
	p := payload.NewPayload().AlertTitle(request.Title).AlertBody(request.Body)
	if request.Sound != "" {
		p = p.Sound(request.Sound)
	}
	if request.CollapseKey != "" {
		p = p.ThreadID(request.CollapseKey)
	}
	for key, value := range request.Data {
		p = p.Custom(key, value)
	}

	n := &apns2.Notification{
		DeviceToken: request.Token,
		Topic:       a.topic,
		Payload:     p,
		Priority:    apns2.PriorityLow,
		PushType:    apns2.PushTypeAlert,
		CollapseID:  request.CollapseKey,
	}
	if request.Priority == PriorityHigh {
		n.Priority = apns2.PriorityHigh
	}
	if request.TTL > 0 {
		n.Expiration = time.Now().Add(request.TTL)
	}
	return n
}
