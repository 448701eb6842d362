package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3Store talks to any S3-compatible service.
type S3Store struct {
	client *minio.Client
	logger *slog.Logger
}

func NewS3Store(cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Store{client: client, logger: logger}, nil
}

func (s *S3Store) RetrievalURL(ctx context.Context, bucket, key string, ttl time.Duration, filename string) (string, error) {
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, params)
	if err != nil {
		s.logger.Error("objectstore.presign_failed", "bucket", bucket, "key", key, "error", err)
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	start := time.Now()
	info, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("objectstore.put_failed", "bucket", bucket, "key", key, "error", err)
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	s.logger.Info("objectstore.put_ok",
		"bucket", bucket,
		"key", key,
		"bytes", info.Size,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *S3Store) Ping(ctx context.Context, bucket string) error {
	ok, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", bucket, ErrNotFound)
	}
	return nil
}
