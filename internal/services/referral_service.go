package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carhire/internal/config"
	"carhire/internal/models"
	"carhire/internal/repositories/documents"
	"carhire/internal/repositories/interfaces"
	"carhire/internal/utils"
	"carhire/pkg/docstore"
	"carhire/pkg/events"
	"carhire/pkg/logger"
)

type ReferralService interface {
	// IssueCode reserves a random referral code for the user, or returns the one
	// they already hold.
	IssueCode(ctx context.Context, userID string) (string, error)
	// ResolveReferrer returns the owner of a referral code, or "" when nobody owns it.
	ResolveReferrer(ctx context.Context, code string) (string, error)
	// AwardReferral credits the referrer once for newUserID.
	AwardReferral(ctx context.Context, referrerID, newUserID string) (*models.ReferralAward, error)
	GetLedger(ctx context.Context, subject models.Subject) (*models.ReferralLedger, error)
}

type referralService struct {
	store         docstore.Store
	userRepo      interfaces.UserRepository
	codeRepo      interfaces.ReferralCodeRepository
	notifications NotificationService
	publisher     events.Publisher
	audit         *logger.AuditLogger
	logger        *logger.Logger
	cfg           *config.ReferralConfig
	now           func() time.Time
}

func NewReferralService(
	cfg *config.Config,
	store docstore.Store,
	userRepo interfaces.UserRepository,
	codeRepo interfaces.ReferralCodeRepository,
	notifications NotificationService,
	publisher events.Publisher,
	audit *logger.AuditLogger,
	log *logger.Logger,
) ReferralService {
	return &referralService{
		store:         store,
		userRepo:      userRepo,
		codeRepo:      codeRepo,
		notifications: notifications,
		publisher:     publisher,
		audit:         audit,
		logger:        log,
		cfg:           cfg.Referral,
		now:           time.Now,
	}
}

func (s *referralService) IssueCode(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", storeFailure("get user", err)
	}
	if user.Referral.Code != "" {
		return user.Referral.Code, nil
	}

	attempts := s.cfg.MaxCodeAttempts
	if attempts <= 0 {
		attempts = 5
	}
	for i := 0; i < attempts; i++ {
		code := utils.GenerateReferralCode(s.cfg.CodeLength)
		err := s.codeRepo.Reserve(ctx, &models.ReferralCode{
			Code:      code,
			UserID:    userID,
			CreatedAt: s.now().UTC(),
		})
		if errors.Is(err, interfaces.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return "", storeFailure("reserve referral code", err)
		}

		if err := s.userRepo.Update(ctx, userID, map[string]interface{}{
			documents.FieldReferralCode:    code,
			documents.FieldReferralShortID: utils.ShortID(userID),
		}); err != nil {
			return "", storeFailure("store referral code", err)
		}
		s.logger.LogReferralEvent(userID, "code_issued", map[string]interface{}{"code": code})
		return code, nil
	}
	return "", fmt.Errorf("%w: could not allocate a unique referral code", ErrStateConflict)
}

func (s *referralService) ResolveReferrer(ctx context.Context, code string) (string, error) {
	raw := strings.TrimSpace(code)
	normalized := utils.NormalizeReferralCode(code)
	if normalized == "" {
		return "", nil
	}

	rc, err := s.codeRepo.Get(ctx, normalized)
	switch {
	case err == nil && rc != nil:
		return rc.UserID, nil
	case err != nil && !errors.Is(err, interfaces.ErrNotFound):
		return "", storeFailure("resolve referral code", err)
	}

	if !s.cfg.LegacySuffixLookup || len(raw) != utils.ShortIDLength {
		return "", nil
	}

	// Legacy links carry the last characters of the referrer's id. Two matches
	// means the suffix cannot be attributed.
	users, err := s.userRepo.FindByShortID(ctx, raw, 2)
	if err != nil {
		return "", storeFailure("resolve legacy referral code", err)
	}
	switch len(users) {
	case 1:
		return users[0].ID, nil
	case 0:
		return "", nil
	}
	s.logger.LogReferralEvent("", "ambiguous_short_id", map[string]interface{}{"short_id": raw})
	return "", nil
}

func (s *referralService) AwardReferral(ctx context.Context, referrerID, newUserID string) (*models.ReferralAward, error) {
	if referrerID == "" || newUserID == "" {
		return nil, validationError("referrer and new user are required")
	}
	if referrerID == newUserID {
		return nil, validationError("a user cannot refer themselves")
	}

	var award *models.ReferralAward
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		referrerSnap, err := tx.Get(documents.CollectionUsers, referrerID)
		if err != nil {
			return err
		}
		newUserSnap, err := tx.Get(documents.CollectionUsers, newUserID)
		if err != nil {
			return err
		}
		referrer := documents.DecodeUser(referrerSnap)
		newUser := documents.DecodeUser(newUserSnap)

		award = &models.ReferralAward{
			ReferrerID:   referrerID,
			NewUserID:    newUserID,
			PointsBefore: referrer.Referral.Points,
			PointsAfter:  referrer.Referral.Points,
			VIPLevel:     referrer.VIP.Level,
		}

		switch newUser.Referral.ReferredBy {
		case "":
		case referrerID:
			award.AlreadyApplied = true
			return nil
		default:
			return ErrAlreadyReferred
		}
		for _, r := range referrer.Referral.Referrals {
			if r.UserID == newUserID {
				award.AlreadyApplied = true
				return tx.Update(documents.CollectionUsers, newUserID, []docstore.Update{
					{Path: documents.FieldReferredBy, Value: referrerID},
				})
			}
		}

		now := s.now().UTC()
		points := referrer.Referral.Points + s.cfg.PointsPerReferral
		earned := models.FreeRidesEarned(referrer.Referral.Points, points, s.cfg.PointsPerFreeRide)
		count := referrer.Referral.Count + 1

		award.PointsAfter = points
		award.FreeRidesEarned = earned

		updates := []docstore.Update{
			{Path: documents.FieldReferrals, Value: docstore.ArrayUnion(documents.EncodeReferralEntry(models.ReferralEntry{
				UserID: newUserID,
				Date:   now,
				Points: s.cfg.PointsPerReferral,
				Status: models.ReferralStatusCompleted,
			}))},
			{Path: documents.FieldReferralPoints, Value: points},
			{Path: documents.FieldReferralCount, Value: count},
			{Path: documents.FieldFreeRides, Value: referrer.Referral.FreeRides + earned},
			{Path: documents.FieldUpdatedAt, Value: now},
		}
		if s.cfg.VIPFromReferrals {
			if level := models.LevelForReferrals(count); level > referrer.VIP.Level {
				award.VIPLevel = level
				updates = append(updates, docstore.Update{Path: documents.FieldVIPLevel, Value: level})
			}
		}

		if err := tx.Update(documents.CollectionUsers, referrerID, updates); err != nil {
			return err
		}
		return tx.Update(documents.CollectionUsers, newUserID, []docstore.Update{
			{Path: documents.FieldReferredBy, Value: referrerID},
			{Path: documents.FieldUpdatedAt, Value: now},
		})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyReferred) {
			return nil, err
		}
		return nil, storeFailure("award referral", err)
	}
	if award.AlreadyApplied {
		return award, nil
	}

	s.audit.LogReferralAward(referrerID, newUserID, award.PointsBefore, award.PointsAfter, award.FreeRidesEarned)
	s.logger.LogReferralEvent(referrerID, "referral_awarded", map[string]interface{}{
		"new_user_id":  newUserID,
		"points":       award.PointsAfter,
		"rides_earned": award.FreeRidesEarned,
	})

	if award.FreeRidesEarned > 0 && s.notifications != nil {
		err := s.notifications.Notify(ctx, referrerID, models.Notification{
			ID:        "referral_reward_" + newUserID,
			Type:      models.NotificationReferralReward,
			Title:     "Free ride earned!",
			Message:   fmt.Sprintf("You reached %d referral points and earned a free ride.", award.PointsAfter),
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			s.logger.WithUserID(referrerID).WithError(err).Warn("Failed to post referral notification")
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.New(utils.EventReferralAwarded, referrerID, award)); err != nil {
			s.logger.WithError(err).Warn("Failed to publish referral event")
		}
	}
	return award, nil
}

func (s *referralService) GetLedger(ctx context.Context, subject models.Subject) (*models.ReferralLedger, error) {
	user, err := s.userRepo.GetByID(ctx, subject.UserID)
	if err != nil {
		return nil, storeFailure("get user", err)
	}
	ledger := user.Referral
	return &ledger, nil
}
