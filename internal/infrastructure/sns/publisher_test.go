package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-password-vault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.PublishOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestPublish_SendsEventToTopic(t *testing.T) {
	m := &mockSNS{}
	var got AuditEvent
	m.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		_ = json.Unmarshal([]byte(*in.Message), &got)
		return *in.TopicArn == "arn:aws:sns:us-east-1:000000000000:audit" &&
			*in.MessageAttributes["action"].StringValue == "drop_collection"
	})).Return(&sns.PublishOutput{}, nil)

	p := newPublisher(m, "arn:aws:sns:us-east-1:000000000000:audit")
	err := p.Publish(context.Background(), AuditEvent{Action: "drop_collection", Target: "otps", Occurred: time.Now()})

	require.NoError(t, err)
	assert.Equal(t, "otps", got.Target)
	m.AssertExpectations(t)
}

func TestPublish_WrapsError(t *testing.T) {
	m := &mockSNS{}
	m.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
	err := newPublisher(m, "arn").Publish(context.Background(), AuditEvent{Action: "x"})
	assert.ErrorContains(t, err, "throttled")
}

func TestNewPublisher_RequiresTopic(t *testing.T) {
	_, err := NewPublisher(context.Background(), &config.Config{})
	assert.Error(t, err)
}
