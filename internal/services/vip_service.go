package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"carhire/internal/config"
	"carhire/internal/models"
	"carhire/internal/repositories/documents"
	"carhire/internal/utils"
	"carhire/pkg/docstore"
	"carhire/pkg/events"
	"carhire/pkg/logger"
	"carhire/pkg/payment"
)

// Metadata keys attached to VIP checkouts so webhooks can be applied.
const (
	PaymentMetaUserID   = "user_id"
	PaymentMetaVIPLevel = "vip_level"
)

type VIPService interface {
	Tiers() []models.VIPTier
	// CreateCheckout starts a gateway payment for a tier.
	CreateCheckout(ctx context.Context, subject models.Subject, level int) (*payment.PaymentResponse, error)
	// Purchase applies a paid tier. The payment is verified with the gateway first
	// when verification is enabled.
	Purchase(ctx context.Context, subject models.Subject, userID string, level int, paymentReference string) (*models.VIPReceipt, error)
	// ApplyWebhook applies a purchase from a signed gateway event. Events for
	// unpaid or non-VIP payments return a nil receipt.
	ApplyWebhook(ctx context.Context, payload []byte, signature string) (*models.VIPReceipt, error)
}

type vipService struct {
	store     docstore.Store
	provider  payment.PaymentProvider
	verify    bool
	currency  string
	publisher events.Publisher
	audit     *logger.AuditLogger
	logger    *logger.Logger
	now       func() time.Time
}

func NewVIPService(
	cfg *config.Config,
	store docstore.Store,
	provider payment.PaymentProvider,
	publisher events.Publisher,
	audit *logger.AuditLogger,
	log *logger.Logger,
) VIPService {
	return &vipService{
		store:     store,
		provider:  provider,
		verify:    cfg.Payment.VerifyPurchases,
		currency:  cfg.Payment.Currency,
		publisher: publisher,
		audit:     audit,
		logger:    log,
		now:       time.Now,
	}
}

func (s *vipService) Tiers() []models.VIPTier {
	return models.VIPTiers
}

func (s *vipService) CreateCheckout(ctx context.Context, subject models.Subject, level int) (*payment.PaymentResponse, error) {
	tier, ok := models.TierByLevel(level)
	if !ok {
		return nil, validationError("unknown VIP level %d", level)
	}
	if s.provider == nil {
		return nil, fmt.Errorf("%w: payments are not configured", ErrStateConflict)
	}
	resp, err := s.provider.CreatePayment(ctx, &payment.PaymentRequest{
		Amount:      tier.Price,
		Currency:    s.currency,
		Description: fmt.Sprintf("%s VIP membership (1 year)", tier.Name),
		CustomerID:  subject.UserID,
		Metadata: map[string]string{
			PaymentMetaUserID:   subject.UserID,
			PaymentMetaVIPLevel: strconv.Itoa(level),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create payment: %w", ErrTransientNetwork, err)
	}
	return resp, nil
}

func (s *vipService) Purchase(ctx context.Context, subject models.Subject, userID string, level int, paymentReference string) (*models.VIPReceipt, error) {
	paymentReference = strings.TrimSpace(paymentReference)
	if userID == "" {
		return nil, validationError("user id is required")
	}
	if paymentReference == "" {
		return nil, validationError("payment reference is required")
	}
	tier, ok := models.TierByLevel(level)
	if !ok {
		return nil, validationError("unknown VIP level %d", level)
	}
	if !subject.Is(userID) && !subject.IsAdmin() {
		return nil, fmt.Errorf("%w: cannot purchase for another user", ErrPermissionDenied)
	}

	if s.verify {
		if err := s.verifyPayment(ctx, userID, tier, paymentReference); err != nil {
			return nil, err
		}
	}
	return s.apply(ctx, userID, tier, paymentReference)
}

func (s *vipService) verifyPayment(ctx context.Context, userID string, tier models.VIPTier, reference string) error {
	if s.provider == nil {
		return fmt.Errorf("%w: no payment gateway configured", ErrPaymentNotVerified)
	}
	v, err := s.provider.VerifyPayment(ctx, reference)
	if err != nil {
		if errors.Is(err, payment.ErrNotPaid) {
			return ErrPaymentNotVerified
		}
		return fmt.Errorf("%w: failed to verify payment: %w", ErrTransientNetwork, err)
	}
	if !v.Paid {
		return ErrPaymentNotVerified
	}
	if owner := v.Metadata[PaymentMetaUserID]; owner != "" && owner != userID {
		return fmt.Errorf("%w: payment belongs to another user", ErrPaymentNotVerified)
	}
	if paidFor, ok := v.Metadata[PaymentMetaVIPLevel]; ok && paidFor != strconv.Itoa(tier.Level) {
		return fmt.Errorf("%w: payment was made for VIP level %s", ErrPaymentNotVerified, paidFor)
	}
	// Gateways report lower-case ISO codes.
	if !strings.EqualFold(v.Currency, s.currency) {
		return fmt.Errorf("%w: payment currency %q does not match %s", ErrPaymentNotVerified, v.Currency, s.currency)
	}
	if v.Amount <= 0 || v.Amount+0.005 < tier.Price {
		return fmt.Errorf("%w: paid amount does not cover %s", ErrPaymentNotVerified, tier.Name)
	}
	return nil
}

func (s *vipService) ApplyWebhook(ctx context.Context, payload []byte, signature string) (*models.VIPReceipt, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: payments are not configured", ErrStateConflict)
	}
	ev, err := s.provider.ValidateWebhook(ctx, payload, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentNotVerified, err)
	}
	if !ev.Paid {
		return nil, nil
	}
	userID := ev.Metadata[PaymentMetaUserID]
	level, err := strconv.Atoi(ev.Metadata[PaymentMetaVIPLevel])
	if userID == "" || err != nil {
		return nil, nil
	}
	tier, ok := models.TierByLevel(level)
	if !ok {
		return nil, validationError("unknown VIP level %d", level)
	}
	return s.apply(ctx, userID, tier, ev.Reference)
}

// apply runs the ledger in one transaction. A payment reference already in the
// history yields the recorded receipt without writing.
func (s *vipService) apply(ctx context.Context, userID string, tier models.VIPTier, reference string) (*models.VIPReceipt, error) {
	var receipt *models.VIPReceipt
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(documents.CollectionUsers, userID)
		if err != nil {
			return err
		}
		user := documents.DecodeUser(snap)
		vip := user.VIP

		if prior, ok := vip.FindPurchase(reference); ok {
			receipt = duplicateReceipt(userID, vip, prior)
			return nil
		}

		now := s.now().UTC()
		purchaseDate, expiry := ExtendSubscription(vip, now)
		level := tier.Level
		if vip.Level > level {
			level = vip.Level
		}
		purchased := tier.Level
		if vip.Active(now) && vip.PurchasedLevel > purchased {
			purchased = vip.PurchasedLevel
		}

		entry := models.VIPPurchase{
			Level:         tier.Level,
			PaymentID:     reference,
			Price:         tier.Price,
			PurchaseDate:  now,
			PreviousLevel: vip.Level,
		}
		receipt = &models.VIPReceipt{
			UserID:         userID,
			Level:          level,
			TierName:       tier.Name,
			PreviousLevel:  vip.Level,
			PurchasedLevel: purchased,
			Price:          tier.Price,
			PaymentID:      reference,
			PurchaseDate:   purchaseDate,
			ExpiryDate:     expiry,
		}

		return tx.Update(documents.CollectionUsers, userID, []docstore.Update{
			{Path: documents.FieldVIPLevel, Value: level},
			{Path: documents.FieldPurchasedVIPLevel, Value: purchased},
			{Path: documents.FieldVIPPurchaseDate, Value: purchaseDate},
			{Path: documents.FieldVIPExpiryDate, Value: expiry},
			{Path: documents.FieldVIPPurchaseHistory, Value: docstore.ArrayUnion(documents.EncodeVIPPurchase(entry))},
			{Path: documents.FieldUpdatedAt, Value: now},
		})
	})
	if err != nil {
		return nil, storeFailure("apply VIP purchase", err)
	}

	s.audit.LogVIPPurchase(userID, receipt.Level, reference, receipt.Price, receipt.PreviousLevel, receipt.Duplicate)
	if !receipt.Duplicate && s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.New(utils.EventVIPPurchased, userID, receipt)); err != nil {
			s.logger.WithError(err).Warn("Failed to publish VIP purchase event")
		}
	}
	return receipt, nil
}

// ExtendSubscription returns the purchase and expiry dates after buying one term.
// An unexpired subscription stacks a term onto its expiry and keeps its original
// purchase date; otherwise both restart at now.
func ExtendSubscription(vip models.VIPSubscription, now time.Time) (time.Time, time.Time) {
	if vip.Active(now) {
		purchaseDate := now
		if vip.PurchaseDate != nil {
			purchaseDate = vip.PurchaseDate.UTC()
		}
		return purchaseDate, vip.ExpiryDate.UTC().Add(models.VIPTerm)
	}
	return now, now.Add(models.VIPTerm)
}

func duplicateReceipt(userID string, vip models.VIPSubscription, prior models.VIPPurchase) *models.VIPReceipt {
	r := &models.VIPReceipt{
		UserID:         userID,
		Level:          vip.Level,
		PreviousLevel:  prior.PreviousLevel,
		PurchasedLevel: vip.PurchasedLevel,
		Price:          prior.Price,
		PaymentID:      prior.PaymentID,
		PurchaseDate:   prior.PurchaseDate,
		Duplicate:      true,
	}
	if tier, ok := models.TierByLevel(prior.Level); ok {
		r.TierName = tier.Name
	}
	if vip.PurchaseDate != nil {
		r.PurchaseDate = *vip.PurchaseDate
	}
	if vip.ExpiryDate != nil {
		r.ExpiryDate = *vip.ExpiryDate
	}
	return r
}
