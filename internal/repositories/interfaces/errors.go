package interfaces

import "errors"

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrCodeTaken is returned when a referral code is already reserved.
	ErrCodeTaken = errors.New("referral code already taken")
)
