package models

import "time"

type TrackingToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidFor reports whether the token belongs to userID and has not expired at now.
func (t *TrackingToken) ValidFor(userID string, now time.Time) bool {
	return t != nil && t.UserID == userID && now.Before(t.ExpiresAt)
}

type TrackingLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PublicLocationView is what an unauthenticated holder of a tracking link sees.
type PublicLocationView struct {
	UserID   string        `json:"user_id"`
	Name     string        `json:"name"`
	Sharing  bool          `json:"sharing"`
	Location *UserLocation `json:"location,omitempty"`
}
