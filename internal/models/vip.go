package models

import "time"

// VIPTerm is the length of one subscription purchase.
const VIPTerm = 365 * 24 * time.Hour

const MaxVIPLevel = 5

type VIPTier struct {
	Level             int     `json:"level"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	Color             string  `json:"color"`
	Stars             int     `json:"stars"`
	ReferralsRequired int     `json:"referrals_required"`
}

var VIPTiers = []VIPTier{
	{Level: 1, Name: "Bronze", Price: 9.99, Color: "#CD7F32", Stars: 1, ReferralsRequired: 5},
	{Level: 2, Name: "Silver", Price: 19.99, Color: "#C0C0C0", Stars: 2, ReferralsRequired: 10},
	{Level: 3, Name: "Gold", Price: 29.99, Color: "#FFD700", Stars: 3, ReferralsRequired: 20},
	{Level: 4, Name: "Platinum", Price: 49.99, Color: "#E5E4E2", Stars: 4, ReferralsRequired: 35},
	{Level: 5, Name: "Diamond", Price: 99.99, Color: "#B9F2FF", Stars: 5, ReferralsRequired: 50},
}

func TierByLevel(level int) (VIPTier, bool) {
	for _, t := range VIPTiers {
		if t.Level == level {
			return t, true
		}
	}
	return VIPTier{}, false
}

// LevelForReferrals returns the highest tier whose referral requirement is met.
func LevelForReferrals(count int) int {
	level := 0
	for _, t := range VIPTiers {
		if count >= t.ReferralsRequired {
			level = t.Level
		}
	}
	return level
}

type VIPPurchase struct {
	Level         int       `json:"level"`
	PaymentID     string    `json:"payment_id"`
	Price         float64   `json:"price"`
	PurchaseDate  time.Time `json:"purchase_date"`
	PreviousLevel int       `json:"previous_level"`
}

type VIPSubscription struct {
	Level          int           `json:"level"`
	PurchasedLevel int           `json:"purchased_level"`
	PurchaseDate   *time.Time    `json:"purchase_date,omitempty"`
	ExpiryDate     *time.Time    `json:"expiry_date,omitempty"`
	History        []VIPPurchase `json:"history,omitempty"`
}

// Active reports whether the subscription has not yet expired at now.
func (v *VIPSubscription) Active(now time.Time) bool {
	return v.ExpiryDate != nil && v.ExpiryDate.After(now)
}

// FindPurchase returns the history entry recorded for a payment reference.
func (v *VIPSubscription) FindPurchase(paymentID string) (VIPPurchase, bool) {
	for _, p := range v.History {
		if p.PaymentID == paymentID {
			return p, true
		}
	}
	return VIPPurchase{}, false
}

type VIPReceipt struct {
	UserID         string    `json:"user_id"`
	Level          int       `json:"level"`
	TierName       string    `json:"tier_name"`
	PreviousLevel  int       `json:"previous_level"`
	PurchasedLevel int       `json:"purchased_level"`
	Price          float64   `json:"price"`
	PaymentID      string    `json:"payment_id"`
	PurchaseDate   time.Time `json:"purchase_date"`
	ExpiryDate     time.Time `json:"expiry_date"`
	Duplicate      bool      `json:"duplicate"`
}
