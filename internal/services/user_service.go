package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carhire/internal/models"
	"carhire/internal/repositories/documents"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/logger"
)

type CreateProfileRequest struct {
	Name         string          `json:"name" binding:"required"`
	Email        string          `json:"email"`
	Role         models.UserRole `json:"role" binding:"required"`
	VehicleID    string          `json:"vehicle_id"`
	ReferralCode string          `json:"referral_code"`
}

type UpdateProfileRequest struct {
	Name      *string `json:"name"`
	VehicleID *string `json:"vehicle_id"`
}

type UserService interface {
	// CreateProfile stores the profile of a newly authenticated user, issues their
	// referral code and credits whoever referred them. Calling it again returns
	// the existing profile.
	CreateProfile(ctx context.Context, subject models.Subject, req CreateProfileRequest) (*models.User, error)
	GetProfile(ctx context.Context, subject models.Subject) (*models.User, error)
	UpdateProfile(ctx context.Context, subject models.Subject, req UpdateProfileRequest) (*models.User, error)
	RegisterPushToken(ctx context.Context, subject models.Subject, token string, platform models.PushPlatform) error
}

type userService struct {
	userRepo  interfaces.UserRepository
	referrals ReferralService
	logger    *logger.Logger
}

func NewUserService(userRepo interfaces.UserRepository, referrals ReferralService, log *logger.Logger) UserService {
	return &userService{userRepo: userRepo, referrals: referrals, logger: log}
}

func (s *userService) CreateProfile(ctx context.Context, subject models.Subject, req CreateProfileRequest) (*models.User, error) {
	if subject.UserID == "" {
		return nil, fmt.Errorf("%w: authentication required", ErrPermissionDenied)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if req.Role != models.RoleCustomer && req.Role != models.RoleDriver {
		return nil, validationError("role must be customer or driver")
	}

	existing, err := s.userRepo.GetByID(ctx, subject.UserID)
	switch {
	case err == nil && existing != nil:
		return existing, nil
	case err != nil && !errors.Is(err, interfaces.ErrNotFound):
		return nil, storeFailure("get user", err)
	}

	user := &models.User{
		ID:        subject.UserID,
		Name:      name,
		Email:     strings.TrimSpace(req.Email),
		Role:      req.Role,
		VehicleID: strings.TrimSpace(req.VehicleID),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, storeFailure("create user", err)
	}
	s.logger.LogUserAction(user.ID, "profile_created", map[string]interface{}{"role": user.Role})

	code, err := s.referrals.IssueCode(ctx, user.ID)
	if err != nil {
		s.logger.WithUserID(user.ID).WithError(err).Warn("Failed to issue referral code")
	}
	user.Referral.Code = code

	if req.ReferralCode != "" {
		s.applyReferral(ctx, user, req.ReferralCode)
	}
	return user, nil
}

// applyReferral never fails profile creation; a bad code is only logged.
func (s *userService) applyReferral(ctx context.Context, user *models.User, code string) {
	log := s.logger.WithUserID(user.ID)
	referrerID, err := s.referrals.ResolveReferrer(ctx, code)
	if err != nil {
		log.WithError(err).Warn("Failed to resolve referral code")
		return
	}
	if referrerID == "" || referrerID == user.ID {
		log.WithField("code", code).Info("Referral code did not resolve")
		return
	}
	if _, err := s.referrals.AwardReferral(ctx, referrerID, user.ID); err != nil {
		log.WithError(err).Warn("Failed to award referral")
		return
	}
	user.Referral.ReferredBy = referrerID
}

func (s *userService) GetProfile(ctx context.Context, subject models.Subject) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, subject.UserID)
	if err != nil {
		return nil, storeFailure("get user", err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, subject models.Subject, req UpdateProfileRequest) (*models.User, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, validationError("name cannot be empty")
		}
		updates[documents.FieldName] = name
	}
	if req.VehicleID != nil {
		updates[documents.FieldVehicleID] = strings.TrimSpace(*req.VehicleID)
	}
	if len(updates) > 0 {
		if err := s.userRepo.Update(ctx, subject.UserID, updates); err != nil {
			return nil, storeFailure("update user", err)
		}
	}
	return s.GetProfile(ctx, subject)
}

func (s *userService) RegisterPushToken(ctx context.Context, subject models.Subject, token string, platform models.PushPlatform) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationError("push token is required")
	}
	if platform != models.PlatformAndroid && platform != models.PlatformIOS {
		return validationError("platform must be android or ios")
	}
	if err := s.userRepo.Update(ctx, subject.UserID, map[string]interface{}{
		documents.FieldPushToken:    token,
		documents.FieldPushPlatform: string(platform),
	}); err != nil {
		return storeFailure("register push token", err)
	}
	return nil
}
