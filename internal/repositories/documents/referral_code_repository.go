package documents

import (
	"context"
	"errors"
	"fmt"

	"carhire/internal/models"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/docstore"
)

type referralCodeRepository struct {
	store docstore.Store
}

func NewReferralCodeRepository(store docstore.Store) interfaces.ReferralCodeRepository {
	return &referralCodeRepository{store: store}
}

// Reserve is a no-op when the code already belongs to the same user.
func (r *referralCodeRepository) Reserve(ctx context.Context, code *models.ReferralCode) error {
	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(CollectionReferralCodes, code.Code)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		if existing := DecodeReferralCode(snap); existing != nil {
			if existing.UserID == code.UserID {
				return nil
			}
			return interfaces.ErrCodeTaken
		}
		return tx.Set(CollectionReferralCodes, code.Code, EncodeReferralCode(code))
	})
	if errors.Is(err, interfaces.ErrCodeTaken) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to reserve referral code: %w", err)
	}
	return nil
}

func (r *referralCodeRepository) Get(ctx context.Context, code string) (*models.ReferralCode, error) {
	snap, err := r.store.Get(ctx, CollectionReferralCodes, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral code: %w", storeError(err))
	}
	return DecodeReferralCode(snap), nil
}
