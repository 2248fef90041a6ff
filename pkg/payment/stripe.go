package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeProvider struct {
	client        *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)

	return &StripeProvider{
		client:        sc,
		webhookSecret: webhookSecret,
	}
}

func (s *StripeProvider) CreatePayment(ctx context.Context, request *PaymentRequest) (*PaymentResponse, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(math.Round(request.Amount * 100))), // Convert to cents
		Currency: stripe.String(strings.ToLower(request.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if request.Description != "" {
		params.Description = stripe.String(request.Description)
	}
	params.Context = ctx
	for key, value := range request.Metadata {
		params.AddMetadata(key, value)
	}

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentResponse{
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       float64(pi.Amount) / 100,
		Currency:     string(pi.Currency),
		CreatedAt:    pi.Created,
	}, nil
}

func (s *StripeProvider) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.client.PaymentIntents.Get(reference, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment intent: %w", err)
	}
	return &Verification{
		Reference: pi.ID,
		Status:    string(pi.Status),
		Paid:      pi.Status == stripe.PaymentIntentStatusSucceeded,
		Amount:    float64(pi.Amount) / 100,
		Currency:  string(pi.Currency),
		Metadata:  pi.Metadata,
	}, nil
}

func (s *StripeProvider) ValidateWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to verify webhook signature: %w", err)
	}

	out := &WebhookEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		CreatedAt: event.Created,
	}
	if strings.HasPrefix(out.EventType, "payment_intent.") {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		out.Reference = pi.ID
		out.Paid = pi.Status == stripe.PaymentIntentStatusSucceeded
		out.Metadata = pi.Metadata
	}
	return out, nil
}
