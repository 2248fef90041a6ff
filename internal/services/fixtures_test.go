package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"carhire/internal/config"
	"carhire/internal/models"
	"carhire/internal/repositories/documents"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/cache"
	"carhire/pkg/docstore"
	"carhire/pkg/logger"
	"carhire/pkg/payment"
	"carhire/pkg/sms"
	"carhire/pkg/websocket"
)

func testConfig() *config.Config {
	return &config.Config{
		Location: &config.LocationConfig{
			HighAccuracy:   true,
			WatchTimeout:   10 * time.Second,
			MaximumAge:     30 * time.Second,
			ResumeStateTTL: time.Hour,
		},
		Maps: &config.MapsConfig{PlaceholderAddress: "Location unavailable"},
		Chat: &config.ChatConfig{
			ExpiryWindow:     7 * 24 * time.Hour,
			MaxMessageLength: 1000,
		},
		Referral: &config.ReferralConfig{
			PointsPerReferral: 2,
			PointsPerFreeRide: 20,
			CodeLength:        8,
			MaxCodeAttempts:   5,
			VIPFromReferrals:  true,
		},
		Tracking: &config.TrackingConfig{
			LinkTTL:   time.Hour,
			PublicURL: "https://carhire.test/",
		},
		Payment: &config.PaymentConfig{Currency: "USD"},
		Security: &config.SecurityConfig{
			OTPLength:      6,
			OTPExpiry:      10 * time.Minute,
			OTPMaxAttempts: 5,
		},
		SMS: &config.SMSConfig{DefaultFrom: "CarHire"},
	}
}

type fixture struct {
	cfg       *config.Config
	store     *docstore.MemoryStore
	users     interfaces.UserRepository
	trips     interfaces.TripRepository
	chats     interfaces.ChatRepository
	codes     interfaces.ReferralCodeRepository
	tokens    interfaces.TrackingTokenRepository
	cache     *cache.MemoryCache
	log       *logger.Logger
	audit     *logger.AuditLogger
	messenger *recordingMessenger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	log := logger.NewNopLogger()
	return &fixture{
		cfg:       testConfig(),
		store:     store,
		users:     documents.NewUserRepository(store),
		trips:     documents.NewTripRepository(store),
		chats:     documents.NewChatRepository(store),
		codes:     documents.NewReferralCodeRepository(store),
		tokens:    documents.NewTrackingTokenRepository(store),
		cache:     cache.NewMemoryCache(),
		log:       log,
		audit:     logger.NewAuditLoggerFrom(log),
		messenger: &recordingMessenger{},
	}
}

func (f *fixture) seedUser(t *testing.T, u *models.User) {
	t.Helper()
	if u.Role == "" {
		u.Role = models.RoleCustomer
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", u.ID, err)
	}
}

func (f *fixture) seedTrip(t *testing.T, trip *models.Trip) {
	t.Helper()
	if trip.Status == "" {
		trip.Status = models.TripStatusActive
	}
	if err := f.trips.Create(context.Background(), trip); err != nil {
		t.Fatalf("seed trip %s: %v", trip.ID, err)
	}
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return u
}

func (f *fixture) trip(t *testing.T, id string) *models.Trip {
	t.Helper()
	trip, err := f.trips.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get trip %s: %v", id, err)
	}
	return trip
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func customer(id string) models.Subject { return models.Subject{UserID: id, Role: models.RoleCustomer} }
func driver(id string) models.Subject   { return models.Subject{UserID: id, Role: models.RoleDriver} }

// ──────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────

type recordingMessenger struct {
	mu     sync.Mutex
	frames map[string][]websocket.Message
}

func (m *recordingMessenger) SendToUser(userID string, message websocket.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frames == nil {
		m.frames = make(map[string][]websocket.Message)
	}
	m.frames[userID] = append(m.frames[userID], message)
}

func (m *recordingMessenger) count(userID, msgType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.frames[userID] {
		if f.Type == msgType {
			n++
		}
	}
	return n
}

type recordingSMS struct {
	mu   sync.Mutex
	sent []*sms.SMSRequest
}

func (r *recordingSMS) SendSMS(ctx context.Context, req *sms.SMSRequest) (*sms.SMSResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, req)
	return &sms.SMSResponse{MessageID: "sm-1", Status: "sent"}, nil
}

func (r *recordingSMS) last() *sms.SMSRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return nil
	}
	return r.sent[len(r.sent)-1]
}

type fakeGateway struct {
	verifications map[string]*payment.Verification
	webhook       *payment.WebhookEvent
	webhookErr    error
}

func (g *fakeGateway) CreatePayment(ctx context.Context, req *payment.PaymentRequest) (*payment.PaymentResponse, error) {
	return &payment.PaymentResponse{Reference: "pi_new", Status: "requires_payment_method", Amount: req.Amount, Currency: req.Currency}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, reference string) (*payment.Verification, error) {
	v, ok := g.verifications[reference]
	if !ok {
		return nil, payment.ErrNotPaid
	}
	return v, nil
}

func (g *fakeGateway) ValidateWebhook(ctx context.Context, payload []byte, signature string) (*payment.WebhookEvent, error) {
	if g.webhookErr != nil {
		return nil, g.webhookErr
	}
	return g.webhook, nil
}
