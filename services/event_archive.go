package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/atoz-auto/autoshop-api/config"
)

// EventArchive stores raw processor payloads for later audit.
type EventArchive interface {
	Archive(ctx context.Context, provider, eventID string, payload []byte) (string, error)
}

// S3Archive writes payloads to an S3 bucket.
type S3Archive struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// NewS3Archive builds an archive from AWS settings. Static credentials are
// used when both keys are set; otherwise the default provider chain applies.
func NewS3Archive(ctx context.Context, cfg appConfig.AWSConfig) (*S3Archive, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required for the event archive")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archive{client: client, bucket: cfg.S3Bucket, now: time.Now}, nil
}

// Archive uploads payload under webhooks/<provider>/<yyyy>/<mm>/<dd>/<event>.json
// and returns the object key.
func (a *S3Archive) Archive(ctx context.Context, provider, eventID string, payload []byte) (string, error) {
	key := archiveKey(provider, eventID, a.now().UTC())

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}

func archiveKey(provider, eventID string, at time.Time) string {
	return fmt.Sprintf("webhooks/%s/%s/%s.json", provider, at.Format("2006/01/02"), eventID)
}
