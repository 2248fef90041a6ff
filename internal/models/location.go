package models

import "time"

// UserLocation is the last reported position of a user. When IsSharing is false the
// coordinates are stale and must not be shown as current.
type UserLocation struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
	IsSharing bool      `json:"is_sharing"`
	VehicleID *string   `json:"vehicle_id,omitempty"`

	// HasCoordinates is false when the stored record carried no latitude at all.
	HasCoordinates bool `json:"-"`
}

// IsLive reports whether the location may be rendered as a current position.
func (l *UserLocation) IsLive() bool {
	return l != nil && l.IsSharing && l.HasCoordinates
}

// Live returns the location when it is live and nil otherwise.
func (l *UserLocation) Live() *UserLocation {
	if !l.IsLive() {
		return nil
	}
	return l
}

// LocationSide names the trip field a participant writes.
type LocationSide string

const (
	DriverSide   LocationSide = "driverLocation"
	CustomerSide LocationSide = "customerLocation"
)

// Coordinates is a lat/lng pair without sharing state.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
