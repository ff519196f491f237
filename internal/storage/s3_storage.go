package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/config"
)

// s3Storage implements ObjectStore on an S3 bucket.
type s3Storage struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Storage creates an S3-backed store. AwsS3Endpoint points it at an S3-compatible
// service; ImageBaseS3URL overrides the public URL prefix (e.g. a CDN).
func NewS3Storage(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	if cfg.AwsS3Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required for the s3 storage driver")
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx,
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AwsS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AwsS3Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.ImageBaseS3URL
	if baseURL == "" {
		if cfg.AwsS3Endpoint != "" {
			baseURL = strings.TrimRight(cfg.AwsS3Endpoint, "/") + "/" + cfg.AwsS3Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.AwsS3Bucket, cfg.AwsRegion)
		}
	}

	return &s3Storage{
		client:  client,
		bucket:  cfg.AwsS3Bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *s3Storage) Upload(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	return &UploadResult{
		URL:          s.baseURL + "/" + key,
		ResourceType: "image",
		Ref:          key,
	}, nil
}

func (s *s3Storage) Delete(ctx context.Context, ref string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from S3: %w", ref, err)
	}
	return nil
}
