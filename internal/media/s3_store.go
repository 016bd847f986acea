package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"postdeck/pkg/logging"
)

// S3Config holds configuration for the media object store.
type S3Config struct {
	Bucket    string // bucket name
	Prefix    string // key prefix for uploaded media
	Region    string // AWS region (default: us-east-1)
	Endpoint  string // custom endpoint for S3-compatible storage (MinIO, etc.)
	AccessKey string // static access key (optional, IAM role chain if empty)
	SecretKey string // static secret key
	PublicURL string // base URL the uploaded objects are served from
}

// S3Store rehosts user-uploaded media so platform APIs can download it
// from a stable public URL.
type S3Store struct {
	client *s3.Client
	config S3Config
	logger logging.Logger
}

// NewS3Store creates the media object store.
func NewS3Store(cfg S3Config, logger logging.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // MinIO and most S3-compatible stores
		})
	}

	logger.WithFields(logging.Fields{
		"bucket":   cfg.Bucket,
		"prefix":   cfg.Prefix,
		"region":   cfg.Region,
		"endpoint": cfg.Endpoint,
	}).Info("Media object store initialized")

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		config: cfg,
		logger: logger,
	}, nil
}

// Upload stores the media bytes under a fresh key and returns the public
// URL the platforms will download from.
func (s *S3Store) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	key := s.objectKey(contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}

	url := s.publicURL(key)
	s.logger.WithFields(logging.Fields{
		"key":  key,
		"size": len(data),
		"url":  url,
	}).Info("Media uploaded")
	return url, nil
}

func (s *S3Store) objectKey(contentType string) string {
	name := uuid.New().String() + extensionFor(contentType)
	name = time.Now().UTC().Format("2006/01/02") + "/" + name
	if s.config.Prefix == "" {
		return name
	}
	return strings.TrimSuffix(s.config.Prefix, "/") + "/" + name
}

func (s *S3Store) publicURL(key string) string {
	if s.config.PublicURL != "" {
		return strings.TrimSuffix(s.config.PublicURL, "/") + "/" + key
	}
	if s.config.Endpoint != "" {
		return strings.TrimSuffix(s.config.Endpoint, "/") + "/" + s.config.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.Bucket, s.config.Region, key)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
