package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type AWSSNSProvider struct {
	client   *sns.Client
	senderID string
}

// NewAWSSNSProvider resolves credentials through the default AWS chain.
func NewAWSSNSProvider(ctx context.Context, region, senderID string) (*AWSSNSProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &AWSSNSProvider{client: sns.NewFromConfig(cfg), senderID: senderID}, nil
}

func (a *AWSSNSProvider) SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error) {
	attributes := map[string]snsTypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": stringAttribute(snsMessageType(request.Type)),
	}
	sender := request.From
	if sender == "" {
		sender = a.senderID
	}
	if sender != "" {
		attributes["AWS.SNS.SMS.SenderID"] = stringAttribute(sender)
	}

	resp, err := a.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(request.To),
		Message:           aws.String(request.Message),
		MessageAttributes: attributes,
	})
	if err != nil {
		var invalid *snsTypes.InvalidParameterValueException
		var optedOut *snsTypes.InvalidParameterException
		if errors.As(err, &invalid) || errors.As(err, &optedOut) {
			return nil, fmt.Errorf("%w: %w", ErrRecipientRejected, err)
		}
		return nil, fmt.Errorf("sns publish failed: %w", err)
	}
	return &SMSResponse{MessageID: aws.ToString(resp.MessageId), Status: "sent"}, nil
}

func stringAttribute(value string) snsTypes.MessageAttributeValue {
	return snsTypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(value)}
}

// OTP codes go out as transactional traffic.
func snsMessageType(messageType string) string {
	if messageType == TypePromotional {
		return "Promotional"
	}
	return "Transactional"
}
