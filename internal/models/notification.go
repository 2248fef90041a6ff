package models

import "time"

type NotificationType string

const (
	NotificationReferralReward NotificationType = "referral_reward"
	NotificationChatMessage    NotificationType = "chat_message"
	NotificationVIPPurchase    NotificationType = "vip_purchase"
)

// Notification is an entry of a user's notification list. Entries are appended with
// set-union semantics, so ID must be stable for a given cause.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
	Read      bool             `json:"read"`
}

type PushPlatform string

const (
	PlatformAndroid PushPlatform = "android"
	PlatformIOS     PushPlatform = "ios"
)
