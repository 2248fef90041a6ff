package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carhire/internal/config"
	"carhire/internal/models"
	"carhire/internal/repositories/documents"
	"carhire/internal/repositories/interfaces"
	"carhire/internal/utils"
	"carhire/pkg/cache"
	"carhire/pkg/logger"
	"carhire/pkg/sms"
)

// ContactService verifies the phone number drivers must have on file before
// they can share their location.
type ContactService interface {
	RequestCode(ctx context.Context, subject models.Subject, phone string) error
	VerifyCode(ctx context.Context, subject models.Subject, code string) (*models.User, error)
}

type pendingContact struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type contactService struct {
	userRepo    interfaces.UserRepository
	cache       cache.Cache
	sms         sms.SMSProvider
	from        string
	codeLength  int
	expiry      time.Duration
	maxAttempts int
	logger      *logger.Logger
}

func NewContactService(cfg *config.Config, userRepo interfaces.UserRepository, store cache.Cache, provider sms.SMSProvider, log *logger.Logger) ContactService {
	return &contactService{
		userRepo:    userRepo,
		cache:       store,
		sms:         provider,
		from:        cfg.SMS.DefaultFrom,
		codeLength:  cfg.Security.OTPLength,
		expiry:      cfg.Security.OTPExpiry,
		maxAttempts: cfg.Security.OTPMaxAttempts,
		logger:      log,
	}
}

func otpKey(userID string) string      { return utils.CacheOTPPrefix + userID }
func attemptsKey(userID string) string { return utils.CacheOTPPrefix + "attempts:" + userID }

func (s *contactService) RequestCode(ctx context.Context, subject models.Subject, phone string) error {
	if subject.UserID == "" {
		return fmt.Errorf("%w: authentication required", ErrPermissionDenied)
	}
	if !utils.IsValidPhone(phone) {
		return validationError("phone number must be in international format")
	}
	if s.sms == nil {
		return fmt.Errorf("%w: sms is not configured", ErrStateConflict)
	}
	phone = utils.NormalizePhone(phone)

	pending := pendingContact{Phone: phone, Code: utils.GenerateOTP(s.codeLength)}
	if err := s.cache.Set(ctx, otpKey(subject.UserID), pending, s.expiry); err != nil {
		return fmt.Errorf("%w: failed to store verification code: %w", ErrTransientNetwork, err)
	}
	if err := s.cache.Delete(ctx, attemptsKey(subject.UserID)); err != nil {
		s.logger.WithUserID(subject.UserID).WithError(err).Warn("Failed to reset OTP attempts")
	}

	_, err := s.sms.SendSMS(ctx, &sms.SMSRequest{
		To:      phone,
		From:    s.from,
		Message: fmt.Sprintf("Your %s verification code is %s", utils.AppName, pending.Code),
		Type:    sms.TypeOTP,
	})
	if errors.Is(err, sms.ErrRecipientRejected) {
		return validationError("phone number cannot receive text messages")
	}
	if err != nil {
		return fmt.Errorf("%w: failed to send verification code: %w", ErrTransientNetwork, err)
	}

	s.logger.WithUserID(subject.UserID).WithField("phone", utils.MaskPhone(phone)).Info("Verification code sent")
	return nil
}

func (s *contactService) VerifyCode(ctx context.Context, subject models.Subject, code string) (*models.User, error) {
	if !utils.ValidateOTP(code, s.codeLength) {
		return nil, ErrInvalidOTP
	}

	var pending pendingContact
	if err := s.cache.Get(ctx, otpKey(subject.UserID), &pending); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("%w: failed to read verification code: %w", ErrTransientNetwork, err)
	}

	attempts, err := s.cache.Count(ctx, attemptsKey(subject.UserID), s.expiry)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count attempts: %w", ErrTransientNetwork, err)
	}
	if int(attempts) > s.maxAttempts {
		_ = s.cache.Delete(ctx, otpKey(subject.UserID))
		return nil, ErrTooManyAttempts
	}
	if pending.Code != code {
		return nil, ErrInvalidOTP
	}

	if err := s.userRepo.Update(ctx, subject.UserID, map[string]interface{}{
		documents.FieldContactPhone:         pending.Phone,
		documents.FieldContactPhoneVerified: true,
	}); err != nil {
		return nil, storeFailure("store contact phone", err)
	}
	_ = s.cache.Delete(ctx, otpKey(subject.UserID), attemptsKey(subject.UserID))

	s.logger.WithUserID(subject.UserID).Info("Contact phone verified")
	user, err := s.userRepo.GetByID(ctx, subject.UserID)
	if err != nil {
		return nil, storeFailure("get user", err)
	}
	return user, nil
}
