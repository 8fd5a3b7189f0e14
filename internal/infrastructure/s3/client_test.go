package s3infra

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct{ mock.Mock }

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*s3.PutObjectOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestArchive_UploadsJSON(t *testing.T) {
	m := &mockS3{}
	var body string
	m.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "backups" && *in.Key == "archives/users/20240102T030405Z.json"
	})).Run(func(args mock.Arguments) {
		b, _ := io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
		body = string(b)
	}).Return(&s3.PutObjectOutput{}, nil)

	store := NewArchiveStore(m, "backups")
	store.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	loc, err := store.Archive(context.Background(), "users", []map[string]interface{}{{"username": "alice"}})
	require.NoError(t, err)
	assert.Equal(t, "s3://backups/archives/users/20240102T030405Z.json", loc)
	assert.JSONEq(t, `[{"username":"alice"}]`, body)
}

func TestArchive_EmptyCollectionWritesEmptyArray(t *testing.T) {
	m := &mockS3{}
	var body string
	m.On("PutObject", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		b, _ := io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
		body = string(b)
	}).Return(&s3.PutObjectOutput{}, nil)

	_, err := NewArchiveStore(m, "b").Archive(context.Background(), "otps", nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", body)
}

func TestArchive_PropagatesError(t *testing.T) {
	m := &mockS3{}
	m.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))
	_, err := NewArchiveStore(m, "b").Archive(context.Background(), "users", nil)
	assert.ErrorContains(t, err, "access denied")
}
