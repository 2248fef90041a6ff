package models

import "time"

type ReferralStatus string

const ReferralStatusCompleted ReferralStatus = "completed"

type ReferralEntry struct {
	UserID string         `json:"user_id"`
	Date   time.Time      `json:"date"`
	Points int            `json:"points"`
	Status ReferralStatus `json:"status"`
}

// ReferralLedger holds the referral fields of a user. FreeRides is stored, and only
// recomputed when an award is made.
type ReferralLedger struct {
	Code       string          `json:"code,omitempty"`
	ShortID    string          `json:"short_id,omitempty"`
	ReferredBy string          `json:"referred_by,omitempty"`
	Points     int             `json:"points"`
	Count      int             `json:"count"`
	FreeRides  int             `json:"free_rides"`
	Referrals  []ReferralEntry `json:"referrals,omitempty"`
}

// ReferralCode is the index record mapping a code to its owner.
type ReferralCode struct {
	Code      string    `json:"code"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FreeRidesEarned returns how many rides crossing from oldPoints to newPoints grants.
func FreeRidesEarned(oldPoints, newPoints, pointsPerRide int) int {
	if pointsPerRide <= 0 {
		return 0
	}
	return newPoints/pointsPerRide - oldPoints/pointsPerRide
}

// ReferralAward summarizes one applied award.
type ReferralAward struct {
	ReferrerID      string `json:"referrer_id"`
	NewUserID       string `json:"new_user_id"`
	PointsBefore    int    `json:"points_before"`
	PointsAfter     int    `json:"points_after"`
	FreeRidesEarned int    `json:"free_rides_earned"`
	VIPLevel        int    `json:"vip_level"`
	AlreadyApplied  bool   `json:"already_applied"`
}
