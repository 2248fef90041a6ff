package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/razorpay/razorpay-go"
)

type RazorpayProvider struct {
	client        *razorpay.Client
	webhookSecret string
}

func NewRazorpayProvider(keyID, keySecret, webhookSecret string) *RazorpayProvider {
	client := razorpay.NewClient(keyID, keySecret)

	return &RazorpayProvider{
		client:        client,
		webhookSecret: webhookSecret,
	}
}

// CreatePayment creates an order; the payment itself is authorized on the client.
func (r *RazorpayProvider) CreatePayment(ctx context.Context, request *PaymentRequest) (*PaymentResponse, error) {
	notes := make(map[string]interface{}, len(request.Metadata))
	for k, v := range request.Metadata {
		notes[k] = v
	}
	orderData := map[string]interface{}{
		"amount":   int(math.Round(request.Amount * 100)), // Amount in paise
		"currency": request.Currency,
		"receipt":  request.CustomerID,
		"notes":    notes,
	}

	order, err := r.client.Order.Create(orderData, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return &PaymentResponse{
		Reference: stringField(order, "id"),
		Status:    stringField(order, "status"),
		Amount:    numberField(order, "amount") / 100,
		Currency:  stringField(order, "currency"),
		CreatedAt: int64(numberField(order, "created_at")),
	}, nil
}

func (r *RazorpayProvider) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	p, err := r.client.Payment.Fetch(reference, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	status := stringField(p, "status")
	return &Verification{
		Reference: stringField(p, "id"),
		Status:    status,
		Paid:      status == "captured",
		Amount:    numberField(p, "amount") / 100,
		Currency:  stringField(p, "currency"),
		Metadata:  notesOf(p),
	}, nil
}

func (r *RazorpayProvider) ValidateWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	expectedSignature := r.generateSignature(payload)
	if !hmac.Equal([]byte(signature), []byte(expectedSignature)) {
		return nil, fmt.Errorf("invalid webhook signature")
	}

	var event struct {
		ID        string `json:"id"`
		Event     string `json:"event"`
		CreatedAt int64  `json:"created_at"`
		Payload   struct {
			Payment struct {
				Entity map[string]interface{} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook payload: %w", err)
	}

	entity := event.Payload.Payment.Entity
	out := &WebhookEvent{
		EventID:   event.ID,
		EventType: event.Event,
		Reference: stringField(entity, "id"),
		Paid:      stringField(entity, "status") == "captured",
		Metadata:  notesOf(entity),
		CreatedAt: event.CreatedAt,
	}
	if out.CreatedAt == 0 {
		out.CreatedAt = time.Now().Unix()
	}
	return out, nil
}

func (r *RazorpayProvider) generateSignature(payload []byte) string {
	h := hmac.New(sha256.New, []byte(r.webhookSecret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func numberField(m map[string]interface{}, key string) float64 {
	switch n := m[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

func notesOf(m map[string]interface{}) map[string]string {
	notes, _ := m["notes"].(map[string]interface{})
	out := make(map[string]string, len(notes))
	for k, v := range notes {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
