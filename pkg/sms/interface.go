// Package sms delivers one-time contact verification codes by text message.
package sms

import (
	"context"
	"errors"
)

// Message types. Providers that price or route by type send OTP codes as
// transactional traffic.
const (
	TypeOTP           = "otp"
	TypeTransactional = "transactional"
	TypePromotional   = "promotional"
)

// ErrRecipientRejected is returned when the provider refuses the destination
// number itself. Retrying the same number will not help.
var ErrRecipientRejected = errors.New("sms recipient rejected")

type SMSProvider interface {
	SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error)
}

type SMSRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type SMSResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}
