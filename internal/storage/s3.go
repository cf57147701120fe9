package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the settings for an S3-compatible bucket (AWS S3, Cloudflare R2, MinIO)
type S3Config struct {
	Endpoint  string // e.g. https://<account>.r2.cloudflarestorage.com; empty for AWS
	Region    string // default "auto"
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string        // e.g. https://<bucket>.r2.dev
	Timeout   time.Duration // per upload, default 30s
}

// S3Storage implements Uploader on top of an S3-compatible object store
type S3Storage struct {
	client    *s3.Client
	bucket    string
	publicURL string
	timeout   time.Duration
	now       func() time.Time
}

// NewS3Storage creates a new S3Storage instance
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.PublicURL == "" {
		return nil, fmt.Errorf("public url is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := s3.Options{
		Region:                     cfg.Region,
		Credentials:                credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle:               true,
		RetryMaxAttempts:           1,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &S3Storage{
		client:    s3.New(opts),
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
		timeout:   cfg.Timeout,
		now:       time.Now,
	}, nil
}

// Upload puts the bill into the bucket and returns its public URL
func (s *S3Storage) Upload(ctx context.Context, data []byte, folder string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := objectKey(folder, s.now(), data)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentTypeFor(key)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: putting object %s: %v", ErrStorageUnavailable, key, err)
	}
	return publicURL(s.publicURL, key), nil
}
