package payment

import (
	"context"
	"errors"
)

// ErrNotPaid is returned when a referenced payment exists but has not settled.
var ErrNotPaid = errors.New("payment not completed")

type PaymentProvider interface {
	// CreatePayment starts a checkout the client completes with the returned secret.
	CreatePayment(ctx context.Context, request *PaymentRequest) (*PaymentResponse, error)
	// VerifyPayment looks a payment up by reference on the gateway.
	VerifyPayment(ctx context.Context, reference string) (*Verification, error)
	ValidateWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

type PaymentRequest struct {
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	CustomerID  string            `json:"customer_id"`
	Metadata    map[string]string `json:"metadata"`
}

type PaymentResponse struct {
	Reference    string  `json:"reference"`
	ClientSecret string  `json:"client_secret,omitempty"`
	Status       string  `json:"status"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	CreatedAt    int64   `json:"created_at"`
}

type Verification struct {
	Reference string            `json:"reference"`
	Status    string            `json:"status"`
	Paid      bool              `json:"paid"`
	Amount    float64           `json:"amount"`
	Currency  string            `json:"currency"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type WebhookEvent struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Reference string            `json:"reference"`
	Paid      bool              `json:"paid"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt int64             `json:"created_at"`
}
