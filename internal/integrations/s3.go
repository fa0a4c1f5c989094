package integrations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"donato/backend/internal/config"
	"donato/backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client archives contribution QR codes in an S3 compatible bucket.
type S3Client struct {
	bucket         string
	endpoint       string
	publicEndpoint string
	client         *s3.Client
}

// NewS3 returns nil, nil when no bucket is configured so archiving stays optional.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	endpoint := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	publicEndpoint := normalizeEndpoint(cfg.PublicEndpoint, cfg.UseSSL)
	if publicEndpoint == "" {
		publicEndpoint = endpoint
	}

	options := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if endpoint != "" {
		options.BaseEndpoint = aws.String(endpoint)
	}

	return &S3Client{
		bucket:         cfg.Bucket,
		endpoint:       endpoint,
		publicEndpoint: publicEndpoint,
		client:         s3.New(options),
	}, nil
}

// ArchiveQR uploads the contribution's QR code and returns its public URL.
func (s *S3Client) ArchiveQR(ctx context.Context, c models.Contribution, png []byte) (string, error) {
	if s == nil {
		return "", errors.New("s3 archive is not configured")
	}
	if len(png) == 0 {
		return "", errors.New("empty qr image")
	}
	key := qrObjectKey(c, time.Now().UTC())
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(png),
		ContentType:   aws.String("image/png"),
		ContentLength: aws.Int64(int64(len(png))),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.publicURLForKey(key), nil
}

func (s *S3Client) publicURLForKey(key string) string {
	if s.publicEndpoint == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	}

	endpoint := s.publicEndpoint
	if !strings.HasPrefix(endpoint, "http") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Sprintf("%s/%s/%s", endpoint, s.bucket, key)
	}
	u.Path = path.Join(u.Path, s.bucket, key)
	return u.String()
}

// qrObjectKey is contributions/YYYY/MM/DD/<order number>-<token>.png.
func qrObjectKey(c models.Contribution, now time.Time) string {
	order := strings.ReplaceAll(strings.TrimSpace(c.OrderNumber), "/", "-")
	if order == "" {
		order = "unknown"
	}
	return fmt.Sprintf("contributions/%d/%02d/%02d/%s-%s.png", now.Year(), now.Month(), now.Day(), order, c.Token)
}

func normalizeEndpoint(endpoint string, useSSL bool) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "http") {
		return endpoint
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	return scheme + "://" + endpoint
}
