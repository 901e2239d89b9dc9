package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// S3Sink archives each entry as one JSON object keyed by day and entry id,
// e.g. audit/2026/08/26/<id>.json. Like all sinks, delivery is best effort.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Sink(client *s3.Client, bucket, prefix string) (*S3Sink, error) {
	if client == nil {
		return nil, errors.New("s3 sink requires a client")
	}
	if bucket == "" {
		return nil, errors.New("s3 sink requires a bucket")
	}
	if prefix == "" {
		prefix = "audit"
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) Emit(ctx context.Context, entry *domain.AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := path.Join(s.prefix,
		entry.Timestamp.UTC().Format("2006/01/02"),
		entry.ID+".json")

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put audit object: %w", err)
	}
	return nil
}
