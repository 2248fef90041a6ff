package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"carhire/internal/models"
	"carhire/internal/utils"
)

func newReferralFixture(t *testing.T) (*fixture, ReferralService) {
	t.Helper()
	f := newFixture(t)
	notifications := NewNotificationService(f.users, nil, f.messenger, f.log)
	svc := NewReferralService(f.cfg, f.store, f.users, f.codes, notifications, nil, f.audit, f.log)
	return f, svc
}

func TestAwardReferral_CrossingThresholdGrantsOneRide(t *testing.T) {
	t.Parallel()

	f, svc := newReferralFixture(t)
	f.seedUser(t, &models.User{ID: "ref", Referral: models.ReferralLedger{Points: 18, Count: 9, FreeRides: 0}})
	f.seedUser(t, &models.User{ID: "new"})

	award, err := svc.AwardReferral(context.Background(), "ref", "new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if award.PointsAfter != 20 || award.FreeRidesEarned != 1 {
		t.Fatalf("expected 20 points and 1 ride, got %+v", award)
	}

	ref := f.user(t, "ref")
	if ref.Referral.Points != 20 || ref.Referral.FreeRides != 1 || ref.Referral.Count != 10 {
		t.Errorf("unexpected ledger %+v", ref.Referral)
	}
	if len(ref.Referral.Referrals) != 1 || ref.Referral.Referrals[0].UserID != "new" {
		t.Errorf("expected one referral entry for new, got %+v", ref.Referral.Referrals)
	}
	if ref.VIP.Level != 2 {
		t.Errorf("expected VIP level 2 from 10 referrals, got %d", ref.VIP.Level)
	}
	if len(ref.Notifications) != 1 || ref.Notifications[0].Type != models.NotificationReferralReward {
		t.Errorf("expected a referral reward notification, got %+v", ref.Notifications)
	}
	if f.user(t, "new").Referral.ReferredBy != "ref" {
		t.Errorf("expected new user to record referrer")
	}
}

func TestAwardReferral_IsIdempotent(t *testing.T) {
	t.Parallel()

	f, svc := newReferralFixture(t)
	f.seedUser(t, &models.User{ID: "ref", Referral: models.ReferralLedger{Points: 4}})
	f.seedUser(t, &models.User{ID: "new"})
	ctx := context.Background()

	if _, err := svc.AwardReferral(ctx, "ref", "new"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := svc.AwardReferral(ctx, "ref", "new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !again.AlreadyApplied {
		t.Errorf("expected second award to be reported as already applied")
	}
	if ref := f.user(t, "ref"); ref.Referral.Points != 6 || len(ref.Referral.Referrals) != 1 {
		t.Errorf("expected a single award of 2 points, got %+v", ref.Referral)
	}
}

func TestAwardReferral_Rejections(t *testing.T) {
	t.Parallel()

	f, svc := newReferralFixture(t)
	f.seedUser(t, &models.User{ID: "ref"})
	f.seedUser(t, &models.User{ID: "other"})
	f.seedUser(t, &models.User{ID: "new", Referral: models.ReferralLedger{ReferredBy: "other"}})
	ctx := context.Background()

	if _, err := svc.AwardReferral(ctx, "ref", "ref"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for self referral, got %v", err)
	}
	if _, err := svc.AwardReferral(ctx, "ref", "new"); !errors.Is(err, ErrAlreadyReferred) {
		t.Errorf("expected ErrAlreadyReferred, got %v", err)
	}
	if _, err := svc.AwardReferral(ctx, "ghost", "new"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing referrer, got %v", err)
	}
}

func TestReferral_IssueResolveAwardRoundTrip(t *testing.T) {
	t.Parallel()

	f, svc := newReferralFixture(t)
	f.seedUser(t, &models.User{ID: "ref"})
	f.seedUser(t, &models.User{ID: "new"})
	ctx := context.Background()

	code, err := svc.IssueCode(ctx, "ref")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again, _ := svc.IssueCode(ctx, "ref"); again != code {
		t.Errorf("expected stable code %s, got %s", code, again)
	}

	owner, err := svc.ResolveReferrer(ctx, "  "+strings.ToLower(code)+" ")
	if err != nil || owner != "ref" {
		t.Fatalf("expected ref to own %s, got %q, %v", code, owner, err)
	}
	if _, err := svc.AwardReferral(ctx, owner, "new"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ledger, err := svc.GetLedger(ctx, customer("ref"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.Code != code || ledger.Points != 2 || ledger.Count != 1 {
		t.Errorf("unexpected ledger %+v", ledger)
	}
}

func TestResolveReferrer_UnknownCode(t *testing.T) {
	t.Parallel()

	_, svc := newReferralFixture(t)
	owner, err := svc.ResolveReferrer(context.Background(), "NOPE1234")
	if err != nil || owner != "" {
		t.Fatalf("expected no owner, got %q, %v", owner, err)
	}
}

func TestResolveReferrer_LegacySuffixRefusesAmbiguity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Referral.LegacySuffixLookup = true
	svc := NewReferralService(f.cfg, f.store, f.users, f.codes, nil, nil, f.audit, f.log)
	ctx := context.Background()

	f.seedUser(t, &models.User{ID: "aaaa-Xy12Ab34", Referral: models.ReferralLedger{ShortID: utils.ShortID("aaaa-Xy12Ab34")}})
	if owner, _ := svc.ResolveReferrer(ctx, "Xy12Ab34"); owner != "aaaa-Xy12Ab34" {
		t.Fatalf("expected unique suffix match, got %q", owner)
	}

	f.seedUser(t, &models.User{ID: "bbbb-Xy12Ab34", Referral: models.ReferralLedger{ShortID: utils.ShortID("bbbb-Xy12Ab34")}})
	if owner, _ := svc.ResolveReferrer(ctx, "Xy12Ab34"); owner != "" {
		t.Fatalf("expected ambiguous suffix to resolve to nobody, got %q", owner)
	}
}
