package services

import (
	"context"
	"errors"
	"testing"

	"carhire/internal/models"
)

func newUserFixture(t *testing.T) (*fixture, UserService, ReferralService) {
	t.Helper()
	f := newFixture(t)
	referrals := NewReferralService(f.cfg, f.store, f.users, f.codes, nil, nil, f.audit, f.log)
	return f, NewUserService(f.users, referrals, f.log), referrals
}

func TestCreateProfile_IssuesCodeAndAppliesReferral(t *testing.T) {
	t.Parallel()

	f, svc, referrals := newUserFixture(t)
	f.seedUser(t, &models.User{ID: "ref", Name: "Ref"})
	ctx := context.Background()
	code, err := referrals.IssueCode(ctx, "ref")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, err := svc.CreateProfile(ctx, customer("new"), CreateProfileRequest{
		Name:         " Nia ",
		Role:         models.RoleCustomer,
		ReferralCode: code,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "Nia" || user.Referral.Code == "" || user.Referral.ReferredBy != "ref" {
		t.Errorf("unexpected profile %+v", user)
	}
	if ref := f.user(t, "ref"); ref.Referral.Points != 2 {
		t.Errorf("expected referrer credited 2 points, got %d", ref.Referral.Points)
	}

	again, err := svc.CreateProfile(ctx, customer("new"), CreateProfileRequest{Name: "Other", Role: models.RoleCustomer, ReferralCode: code})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Name != "Nia" {
		t.Errorf("expected existing profile, got %q", again.Name)
	}
	if ref := f.user(t, "ref"); ref.Referral.Points != 2 {
		t.Errorf("expected no second credit, got %d", ref.Referral.Points)
	}
}

func TestCreateProfile_BadReferralCodeStillCreates(t *testing.T) {
	t.Parallel()

	_, svc, _ := newUserFixture(t)
	user, err := svc.CreateProfile(context.Background(), driver("d1"), CreateProfileRequest{
		Name:         "Dev",
		Role:         models.RoleDriver,
		ReferralCode: "NOBODY00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Referral.ReferredBy != "" {
		t.Errorf("expected no referrer, got %q", user.Referral.ReferredBy)
	}
}

func TestCreateProfile_RejectsAdminRole(t *testing.T) {
	t.Parallel()

	_, svc, _ := newUserFixture(t)
	_, err := svc.CreateProfile(context.Background(), customer("u1"), CreateProfileRequest{Name: "X", Role: models.RoleAdmin})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRegisterPushToken(t *testing.T) {
	t.Parallel()

	f, svc, _ := newUserFixture(t)
	f.seedUser(t, &models.User{ID: "u1"})
	ctx := context.Background()

	if err := svc.RegisterPushToken(ctx, customer("u1"), "tok", "windows"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown platform, got %v", err)
	}
	if err := svc.RegisterPushToken(ctx, customer("u1"), "tok", models.PlatformIOS); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u := f.user(t, "u1"); u.PushToken != "tok" || u.PushPlatform != models.PlatformIOS {
		t.Errorf("expected ios token, got %q %q", u.PushToken, u.PushPlatform)
	}
}
