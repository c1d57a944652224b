package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

var _ scans.Archive = (*S3Store)(nil)

type s3Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store archives to AWS S3 or an S3-compatible endpoint.
type S3Store struct {
	client s3Putter
	bucket string
	now    func() time.Time
}

// NewS3 builds a client from static credentials. An empty endpoint uses
// the AWS default for region.
func NewS3(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: bucket, now: time.Now}, nil
}

// Put archives one result and returns its s3:// location.
func (s *S3Store) Put(ctx context.Context, r *scans.ScanResult, url string) (string, error) {
	now := s.now()
	body, err := encode(r, url, now)
	if err != nil {
		return "", err
	}
	key := ObjectKey(r, now)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
