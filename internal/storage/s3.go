package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/friendgraph/backend/internal/config"
	"github.com/friendgraph/backend/internal/relationships"
)

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archive keeps an append-only copy of relationship events in an
// S3-compatible bucket, one JSON object per event.
type S3Archive struct {
	uploader objectUploader
	bucket   string
	prefix   string
}

// NewS3Archive configures an uploader targeting the provided bucket.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 archive: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.LeavePartsOnError = false
	})

	return newS3Archive(uploader, cfg.Bucket, cfg.Prefix), nil
}

func newS3Archive(uploader objectUploader, bucket, prefix string) *S3Archive {
	return &S3Archive{
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// Publish stores event under a key partitioned by the day it occurred.
func (a *S3Archive) Publish(ctx context.Context, event relationships.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := a.Key(event)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 archive upload %s: %w", key, err)
	}
	return nil
}

// Key returns the object key used for event.
func (a *S3Archive) Key(event relationships.Event) string {
	at := event.OccurredAt.UTC()
	name := fmt.Sprintf("%s-%s-%s.json",
		at.Format("20060102T150405.000000000Z"),
		strings.ToLower(string(event.Type)),
		objectSuffix(event),
	)
	return path.Join(a.prefix, at.Format("2006/01/02"), name)
}

func objectSuffix(event relationships.Event) string {
	if event.EdgeID != "" {
		return event.EdgeID
	}
	return event.Actor + "_" + event.Target
}

var _ relationships.Publisher = (*S3Archive)(nil)
