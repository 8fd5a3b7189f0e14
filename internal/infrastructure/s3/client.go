package s3infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-password-vault/internal/config"
	"github.com/go-password-vault/internal/infrastructure/awsconf"
)

// objectPutter is the subset of *s3.Client the archive needs.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveStore writes JSON snapshots of collections before destructive admin actions.
type ArchiveStore struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, "")
	if err != nil {
		return nil, err
	}
	endpoint := awsconf.Endpoint(cfg)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
			o.UsePathStyle = true
		}
	}), nil
}

func NewArchiveStore(client objectPutter, bucket string) *ArchiveStore {
	return &ArchiveStore{client: client, bucket: bucket, now: time.Now}
}

// Archive uploads rows as one JSON document and returns its s3:// location.
// Keys look like archives/<collection>/<UTC timestamp>.json.
func (s *ArchiveStore) Archive(ctx context.Context, collection string, rows []map[string]interface{}) (string, error) {
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}
	key := fmt.Sprintf("archives/%s/%s.json", collection, s.now().UTC().Format("20060102T150405Z"))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
