package push

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoToken is returned when a recipient has no registered device.
	ErrNoToken = errors.New("no push token registered")
	// ErrTokenUnregistered is returned when the platform reports the device token
	// as no longer valid. The token should be forgotten.
	ErrTokenUnregistered = errors.New("push token unregistered")
)

type PushProvider interface {
	SendNotification(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error)
}

type NotificationRequest struct {
	Token       string            `json:"token"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	Sound       string            `json:"sound,omitempty"`
	Priority    string            `json:"priority,omitempty"`
	TTL         time.Duration     `json:"ttl,omitempty"`
	CollapseKey string            `json:"collapse_key,omitempty"`
	ChannelID   string            `json:"channel_id,omitempty"`
}

type NotificationResponse struct {
	MessageID string `json:"message_id"`
	Token     string `json:"token,omitempty"`
}
