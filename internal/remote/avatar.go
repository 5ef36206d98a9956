package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
)

// s3Client is the subset of the S3 API the avatar store uses; an
// interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// AvatarConfig holds S3-compatible storage configuration for profile
// avatars.
type AvatarConfig struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c AvatarConfig) valid() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// AvatarStore uploads avatar images to a content bucket keyed by
// accountID/profileID.ext. The stored reference is the authenticated
// object path, never a publicly resolvable URL.
type AvatarStore struct {
	cfg    AvatarConfig
	client s3Client
	logger *slog.Logger
}

func NewAvatarStore(cfg AvatarConfig, logger *slog.Logger) *AvatarStore {
	a := &AvatarStore{cfg: cfg, logger: logger}
	if cfg.valid() {
		a.client = newS3Client(cfg)
	}
	return a
}

func newS3Client(cfg AvatarConfig) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether avatar storage is configured.
func (a *AvatarStore) Enabled() bool {
	return a.client != nil
}

// Upload stores an avatar and returns the reference to persist in the
// profile's avatar_url. Uploads are retried a few times with backoff;
// unlike sync calls they have no natural later retry point.
func (a *AvatarStore) Upload(ctx context.Context, accountID, profileID, ext string, contentType string, body io.Reader) (string, error) {
	if a.client == nil {
		return "", ErrNotConfigured
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	key := path.Join(accountID, profileID) + ext

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upload avatar %s: %w", key, err)
	}

	a.logger.Info("avatar uploaded", "key", key)
	return "avatars/" + key, nil
}

// Delete removes a profile's avatar object. Best effort.
func (a *AvatarStore) Delete(ctx context.Context, ref string) error {
	if a.client == nil {
		return ErrNotConfigured
	}
	key := strings.TrimPrefix(ref, "avatars/")
	if key == "" {
		return nil
	}
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete avatar %s: %w", key, err)
	}
	return nil
}
