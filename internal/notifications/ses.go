package notifications

import (
	"context"
	"fmt"

	"rental_app_backend/internal/metrics"
	"rental_app_backend/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SESAPI is the part of the SES client used here, for mocking.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSAPI is the part of the SNS client used here, for mocking.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// AWSSender emails through SES and, when enabled, texts through SNS.
type AWSSender struct {
	ses  SESAPI
	sns  SNSAPI
	from string
}

// NewAWSSender wires SES and SNS clients from the default credential chain.
// SMS is disabled when smsEnabled is false.
func NewAWSSender(ctx context.Context, region, from string, smsEnabled bool) (*AWSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	var snsClient SNSAPI
	if smsEnabled {
		snsClient = sns.NewFromConfig(cfg)
	}
	return NewAWSSenderWithClients(ses.NewFromConfig(cfg), snsClient, from), nil
}

// NewAWSSenderWithClients builds a sender over existing clients. snsClient may be nil.
func NewAWSSenderWithClients(sesClient SESAPI, snsClient SNSAPI, from string) *AWSSender {
	return &AWSSender{ses: sesClient, sns: snsClient, from: from}
}

// Send delivers the email, then the SMS if one is attached. Only the email
// decides the result; a failed SMS is logged and counted so a retry never
// sends the email twice.
func (s *AWSSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	_, err := s.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}

	if s.sns != nil && msg.SMSTo != "" && msg.SMSBody != "" {
		if _, err := s.sns.Publish(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(msg.SMSTo),
			Message:     aws.String(msg.SMSBody),
		}); err != nil {
			metrics.NotificationsTotal.WithLabelValues(string(msg.Kind)+"_sms", metrics.OutcomeFailure).Inc()
			utils.LogWarn(err, "SMS not delivered", map[string]interface{}{"kind": msg.Kind, "application_id": msg.ApplicationID})
		}
	}
	return nil
}
