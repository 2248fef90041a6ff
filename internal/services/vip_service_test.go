package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"carhire/internal/models"
	"carhire/pkg/payment"
)

var vipNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newVIPFixture(t *testing.T, gateway payment.PaymentProvider, verify bool) (*fixture, *vipService) {
	t.Helper()
	f := newFixture(t)
	f.cfg.Payment.VerifyPurchases = verify
	svc := NewVIPService(f.cfg, f.store, gateway, nil, f.audit, f.log).(*vipService)
	svc.now = fixedClock(vipNow)
	return f, svc
}

func TestExtendSubscription_StacksOntoActiveExpiry(t *testing.T) {
	t.Parallel()

	bought := vipNow.Add(-165 * 24 * time.Hour)
	expiry := vipNow.Add(200 * 24 * time.Hour)
	vip := models.VIPSubscription{Level: 2, PurchaseDate: &bought, ExpiryDate: &expiry}

	purchaseDate, newExpiry := ExtendSubscription(vip, vipNow)
	if want := vipNow.Add(565 * 24 * time.Hour); !newExpiry.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, newExpiry)
	}
	if !purchaseDate.Equal(bought) {
		t.Errorf("expected original purchase date %v, got %v", bought, purchaseDate)
	}
}

func TestExtendSubscription_RestartsWhenLapsed(t *testing.T) {
	t.Parallel()

	lapsed := vipNow.Add(-time.Hour)
	purchaseDate, expiry := ExtendSubscription(models.VIPSubscription{ExpiryDate: &lapsed}, vipNow)
	if !purchaseDate.Equal(vipNow) || !expiry.Equal(vipNow.Add(models.VIPTerm)) {
		t.Errorf("expected fresh term from now, got %v to %v", purchaseDate, expiry)
	}
}

func TestPurchase_NeverLowersLevel(t *testing.T) {
	t.Parallel()

	f, svc := newVIPFixture(t, nil, false)
	f.seedUser(t, &models.User{ID: "u1", VIP: models.VIPSubscription{Level: 4}})

	receipt, err := svc.Purchase(context.Background(), customer("u1"), "u1", 2, "pay-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Level != 4 || receipt.PreviousLevel != 4 {
		t.Errorf("expected level to stay 4, got %+v", receipt)
	}

	u := f.user(t, "u1")
	if u.VIP.Level != 4 || u.VIP.PurchasedLevel != 2 {
		t.Errorf("expected level 4 purchased 2, got %+v", u.VIP)
	}
	if len(u.VIP.History) != 1 || u.VIP.History[0].PaymentID != "pay-1" {
		t.Errorf("expected one history entry, got %+v", u.VIP.History)
	}
	if !u.VIP.ExpiryDate.Equal(vipNow.Add(models.VIPTerm)) {
		t.Errorf("expected expiry one term from now, got %v", u.VIP.ExpiryDate)
	}
}

func TestPurchase_DuplicateReferenceIsNoop(t *testing.T) {
	t.Parallel()

	f, svc := newVIPFixture(t, nil, false)
	f.seedUser(t, &models.User{ID: "u1"})
	ctx := context.Background()

	first, err := svc.Purchase(ctx, customer("u1"), "u1", 3, "pay-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Purchase(ctx, customer("u1"), "u1", 3, "pay-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Duplicate || !second.ExpiryDate.Equal(first.ExpiryDate) {
		t.Errorf("expected duplicate receipt with unchanged expiry, got %+v", second)
	}
	if u := f.user(t, "u1"); len(u.VIP.History) != 1 {
		t.Errorf("expected one history entry, got %d", len(u.VIP.History))
	}
}

func TestPurchase_ValidationAndPermission(t *testing.T) {
	t.Parallel()

	f, svc := newVIPFixture(t, nil, false)
	f.seedUser(t, &models.User{ID: "u1"})
	ctx := context.Background()

	if _, err := svc.Purchase(ctx, customer("u1"), "u1", 9, "pay-1"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown tier, got %v", err)
	}
	if _, err := svc.Purchase(ctx, customer("u1"), "u1", 1, " "); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for blank reference, got %v", err)
	}
	if _, err := svc.Purchase(ctx, customer("u2"), "u1", 1, "pay-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestPurchase_VerifiesWithGateway(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{verifications: map[string]*payment.Verification{
		"pay-ok":    {Reference: "pay-ok", Paid: true, Amount: 19.99, Currency: "usd", Metadata: map[string]string{PaymentMetaUserID: "u1", PaymentMetaVIPLevel: "2"}},
		"pay-short": {Reference: "pay-short", Paid: true, Amount: 5, Currency: "usd"},
		"pay-theft": {Reference: "pay-theft", Paid: true, Amount: 19.99, Currency: "usd", Metadata: map[string]string{PaymentMetaUserID: "u2"}},
		"pay-zero":  {Reference: "pay-zero", Paid: true, Currency: "usd"},
		"pay-eur":   {Reference: "pay-eur", Paid: true, Amount: 19.99, Currency: "eur"},
		"pay-tier":  {Reference: "pay-tier", Paid: true, Amount: 19.99, Currency: "usd", Metadata: map[string]string{PaymentMetaVIPLevel: "1"}},
	}}
	f, svc := newVIPFixture(t, gateway, true)
	f.seedUser(t, &models.User{ID: "u1"})
	ctx := context.Background()

	for _, ref := range []string{"pay-unknown", "pay-short", "pay-theft", "pay-zero", "pay-eur", "pay-tier"} {
		if _, err := svc.Purchase(ctx, customer("u1"), "u1", 2, ref); !errors.Is(err, ErrPaymentNotVerified) {
			t.Errorf("%s: expected ErrPaymentNotVerified, got %v", ref, err)
		}
	}
	if _, err := svc.Purchase(ctx, customer("u1"), "u1", 2, "pay-ok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u := f.user(t, "u1"); u.VIP.Level != 2 {
		t.Errorf("expected level 2, got %d", u.VIP.Level)
	}
}

func TestApplyWebhook_UsesMetadata(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{webhook: &payment.WebhookEvent{
		Reference: "pi_123",
		Paid:      true,
		Metadata:  map[string]string{PaymentMetaUserID: "u1", PaymentMetaVIPLevel: "5"},
	}}
	f, svc := newVIPFixture(t, gateway, true)
	f.seedUser(t, &models.User{ID: "u1"})

	receipt, err := svc.ApplyWebhook(context.Background(), []byte(`{}`), "sig")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt == nil || receipt.Level != 5 || receipt.TierName != "Diamond" {
		t.Fatalf("expected Diamond receipt, got %+v", receipt)
	}

	gateway.webhook = &payment.WebhookEvent{Reference: "pi_456", Paid: true}
	if receipt, err := svc.ApplyWebhook(context.Background(), []byte(`{}`), "sig"); err != nil || receipt != nil {
		t.Errorf("expected non-VIP payment to be ignored, got %+v, %v", receipt, err)
	}
}
