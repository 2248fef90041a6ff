package models

import "time"

// CurrentSchemaVersion is stamped on every user document written by this service.
const CurrentSchemaVersion = 2

type User struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Email                string         `json:"email,omitempty"`
	Role                 UserRole       `json:"role"`
	ContactPhone         string         `json:"contact_phone,omitempty"`
	ContactPhoneVerified bool           `json:"contact_phone_verified"`
	VehicleID            string         `json:"vehicle_id,omitempty"`
	PushToken            string         `json:"-"`
	PushPlatform         PushPlatform   `json:"-"`
	Location             *UserLocation  `json:"location,omitempty"`
	Notifications        []Notification `json:"notifications,omitempty"`

	Referral ReferralLedger  `json:"referral"`
	VIP      VIPSubscription `json:"vip"`

	SchemaVersion int       `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasVerifiedContact reports whether a verified phone number is on file.
func (u *User) HasVerifiedContact() bool {
	return u.ContactPhone != "" && u.ContactPhoneVerified
}

// DisplayName falls back to a generic label for users without a name.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Role == RoleDriver {
		return "Driver"
	}
	return "Customer"
}
