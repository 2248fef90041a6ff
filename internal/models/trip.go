package models

import "time"

type TripStatus string

const (
	TripStatusActive    TripStatus = "active"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

type Trip struct {
	ID               string        `json:"id"`
	PickupLocation   string        `json:"pickup_location"`
	Destination      string        `json:"destination"`
	DriverID         string        `json:"driver_id"`
	CustomerID       string        `json:"customer_id"`
	DriverLocation   *UserLocation `json:"driver_location,omitempty"`
	CustomerLocation *UserLocation `json:"customer_location,omitempty"`
	Status           TripStatus    `json:"status"`
	Rating           *int          `json:"rating,omitempty"`
	Review           string        `json:"review,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

func (t *Trip) IsParticipant(userID string) bool {
	return userID != "" && (t.DriverID == userID || t.CustomerID == userID)
}

// SideOf returns the location field owned by the user, if they take part in the trip.
func (t *Trip) SideOf(userID string) (LocationSide, bool) {
	switch userID {
	case "":
		return "", false
	case t.DriverID:
		return DriverSide, true
	case t.CustomerID:
		return CustomerSide, true
	}
	return "", false
}

// TripView is the derived state a participant sees while tracking a trip.
type TripView struct {
	Trip             *Trip         `json:"trip,omitempty"`
	DriverLocation   *UserLocation `json:"driver_location,omitempty"`
	CustomerLocation *UserLocation `json:"customer_location,omitempty"`
	DriverSharing    bool          `json:"driver_sharing"`
	CustomerSharing  bool          `json:"customer_sharing"`
	Progress         int           `json:"progress"`
	ETA              string        `json:"eta"`
}
