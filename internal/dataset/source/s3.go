package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/config"
)

func init() {
	Register("s3", func(cfg config.Config, logger *slog.Logger) (Source, error) {
		return NewS3(cfg.S3, logger)
	})
}

// S3 reads files from an S3-compatible bucket under an optional prefix.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3(cfg config.S3Cfg, logger *slog.Logger) (*S3, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("missing one or more required settings: S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("S3_BUCKET is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if logger != nil {
		logger.Info("s3 data source", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	}
	return &S3{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *S3) Name() string { return "s3" }

func (s *S3) key(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

func (s *S3) Fetch(ctx context.Context, p string) ([]byte, error) {
	if strings.Contains(p, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	key := s.key(p)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(key, err)
	}
	defer obj.Close()

	b, err := io.ReadAll(io.LimitReader(obj, MaxFileSize+1))
	if err != nil {
		return nil, s.wrap(key, err)
	}
	if len(b) > MaxFileSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, key)
	}
	return b, nil
}

func (s *S3) wrap(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
	}
	return fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
}
