// Package storage hands out time-limited URLs for generated clips and for
// client uploads. Object bytes never pass through the api.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const DefaultURLTTL = time.Hour

type Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint (MinIO, localstack). Path-style
	// addressing is used when set.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	URLTTL          time.Duration
}

type S3Store struct {
	bucket  string
	ttl     time.Duration
	presign *s3.PresignClient
}

func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = DefaultURLTTL
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		bucket:  cfg.Bucket,
		ttl:     cfg.URLTTL,
		presign: s3.NewPresignClient(client),
	}, nil
}

// PresignedURL returns a GET URL for key valid for the configured TTL.
func (s *S3Store) PresignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("storage: empty key")
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("storage: presign get %s: %w", key, err)
	}
	return req.URL, nil
}

type Upload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// UploadURL reserves a fresh key under uploads/ and returns a PUT URL for it.
// The key is what the caller later passes as the source audio of a
// speech-to-speech job.
func (s *S3Store) UploadURL(ctx context.Context, fileType string) (Upload, error) {
	ext, err := extension(fileType)
	if err != nil {
		return Upload{}, err
	}
	key := path.Join("uploads", uuid.NewString()+ext)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(fileType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return Upload{}, fmt.Errorf("storage: presign put: %w", err)
	}
	return Upload{Key: key, URL: req.URL}, nil
}

var ErrUnsupportedType = errors.New("unsupported file type")

func extension(fileType string) (string, error) {
	switch strings.ToLower(fileType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav", nil
	case "audio/mpeg", "audio/mp3":
		return ".mp3", nil
	case "audio/ogg":
		return ".ogg", nil
	case "audio/flac", "audio/x-flac":
		return ".flac", nil
	case "audio/webm":
		return ".webm", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}
}
