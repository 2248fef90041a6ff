package interfaces

import (
	"context"

	"carhire/internal/models"
)

type ReferralCodeRepository interface {
	// Reserve stores code for userID, failing with ErrCodeTaken if it is in use.
	Reserve(ctx context.Context, code *models.ReferralCode) error
	Get(ctx context.Context, code string) (*models.ReferralCode, error)
}
