// Package sns publishes OTP delivery requests to an SNS topic. A mail worker
// subscribed to the topic renders and sends the email.
package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/config"
	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/validate"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
)

// Publisher is the subset of *sns.Client the gateway uses.
type Publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Gateway struct {
	client   Publisher
	topicARN string
	appName  string
}

// NewClient builds an SNS client for cfg.SNSRegion, honouring the LocalStack endpoint.
func NewClient(awsCfg aws.Config, cfg *config.Config) *sns.Client {
	return sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		o.Region = cfg.SNSRegion
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
}

func NewGateway(client Publisher, cfg *config.Config) *Gateway {
	return &Gateway{client: client, topicARN: cfg.SNSTopicARN, appName: cfg.AppName}
}

type otpMessage struct {
	Type            string    `json:"type"`
	AppName         string    `json:"appName"`
	Email           string    `json:"email"`
	Code            string    `json:"code"`
	ValidityMinutes int       `json:"validityMinutes"`
	RequestedAt     time.Time `json:"requestedAt"`
}

// Send publishes one message per code. Every error is a *domain.DeliveryError.
func (g *Gateway) Send(ctx context.Context, email, code string, validity time.Duration) error {
	if !validate.Email(email) {
		return domain.NewDeliveryError(domain.DeliveryInvalidEmail, fmt.Errorf("invalid recipient %q", email))
	}
	if validate.Var(code, validate.TagCode) != nil {
		return domain.NewDeliveryError(domain.DeliveryInvalidCode, errors.New("code must be 6 digits"))
	}
	if g.topicARN == "" {
		return domain.NewDeliveryError(domain.DeliveryNotConfigured, errors.New("SNS_TOPIC_ARN is empty"))
	}

	body, err := json.Marshal(otpMessage{
		Type:            "otp_email",
		AppName:         g.appName,
		Email:           email,
		Code:            code,
		ValidityMinutes: int(validity.Round(time.Minute) / time.Minute),
		RequestedAt:     time.Now().UTC(),
	})
	if err != nil {
		return domain.NewDeliveryError(domain.DeliverySendFailed, err)
	}

	_, err = g.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(g.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"email": {DataType: aws.String("String"), StringValue: aws.String(email)},
			"type":  {DataType: aws.String("String"), StringValue: aws.String("otp_email")},
		},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) *domain.DeliveryError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AuthorizationError", "InvalidClientTokenId", "SignatureDoesNotMatch", "AccessDenied", "ExpiredToken":
			return domain.NewDeliveryError(domain.DeliveryAuthFailed, err)
		case "NotFound", "InvalidParameter":
			return domain.NewDeliveryError(domain.DeliveryNotConfigured, err)
		case "Throttled", "InternalError", "KMSThrottling":
			return domain.NewDeliveryError(domain.DeliverySendFailed, err)
		}
	}
	return domain.ClassifyDeliveryError(err)
}
