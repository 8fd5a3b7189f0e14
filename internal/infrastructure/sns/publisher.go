package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-password-vault/internal/config"
	"github.com/go-password-vault/internal/infrastructure/awsconf"
)

// AuditEvent describes one destructive admin action.
type AuditEvent struct {
	Action   string    `json:"action"`
	Target   string    `json:"target"`
	Archive  string    `json:"archive,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

// AuditPublisher emits audit events.
type AuditPublisher interface {
	Publish(ctx context.Context, ev AuditEvent) error
}

type publishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publisher struct {
	client   publishAPI
	topicARN string
}

// NewPublisher builds an SNS-backed AuditPublisher for cfg.SNSAuditTopicARN.
func NewPublisher(ctx context.Context, cfg *config.Config) (AuditPublisher, error) {
	if cfg.SNSAuditTopicARN == "" {
		return nil, fmt.Errorf("SNS_AUDIT_TOPIC_ARN is not set")
	}
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	endpoint := awsconf.Endpoint(cfg)
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
	return newPublisher(client, cfg.SNSAuditTopicARN), nil
}

func newPublisher(client publishAPI, topicARN string) *publisher {
	return &publisher{client: client, topicARN: topicARN}
}

func (p *publisher) Publish(ctx context.Context, ev AuditEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String("vault-admin: " + ev.Action),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"action": {DataType: aws.String("String"), StringValue: aws.String(ev.Action)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
