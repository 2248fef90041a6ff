package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// Twilio error codes for numbers that can never receive the message.
const (
	twilioInvalidTo       = 21211
	twilioUnreachableTo   = 21612
	twilioUnsubscribedTo  = 21610
	twilioRegionDisabled  = 21408
	twilioNotMobileNumber = 21614
)

type TwilioProvider struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewTwilioProvider(accountSID, authToken, fromNumber string) *TwilioProvider {
	return &TwilioProvider{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromNumber: fromNumber,
	}
}

// SendSMS has no context support in the Twilio client, so ctx is only checked
// before the call.
func (t *TwilioProvider) SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	from := request.From
	if from == "" {
		from = t.fromNumber
	}
	params := &api.CreateMessageParams{}
	params.SetTo(request.To)
	params.SetFrom(from)
	params.SetBody(request.Message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return nil, classifyTwilioError(err)
	}

	out := &SMSResponse{Status: "queued"}
	if resp.Sid != nil {
		out.MessageID = *resp.Sid
	}
	if resp.Status != nil {
		out.Status = string(*resp.Status)
	}
	return out, nil
}

func classifyTwilioError(err error) error {
	var restErr *client.TwilioRestError
	if errors.As(err, &restErr) && restErr.Status == http.StatusBadRequest {
		switch restErr.Code {
		case twilioInvalidTo, twilioUnreachableTo, twilioUnsubscribedTo, twilioRegionDisabled, twilioNotMobileNumber:
			return fmt.Errorf("%w: twilio %d: %s", ErrRecipientRejected, restErr.Code, restErr.Message)
		}
	}
	return fmt.Errorf("twilio send failed: %w", err)
}
