package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store wraps the object storage used for uploaded documents, analysis
// result payloads and rendered PDF reports, one bucket each.
type Store struct {
	client *minio.Client
	logger *slog.Logger

	UploadBucket string
	ResultBucket string
	ReportBucket string
}

type Config struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UploadBucket string
	ResultBucket string
	ReportBucket string
}

type API interface {
	Upload(ctx context.Context, bucket, objectName string, data []byte, contentType string) error
	Download(ctx context.Context, bucket, objectName string) ([]byte, error)
	Buckets() (upload, result, report string)
}

func New(config Config, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	return &Store{
		client:       client,
		logger:       logger,
		UploadBucket: config.UploadBucket,
		ResultBucket: config.ResultBucket,
		ReportBucket: config.ReportBucket,
	}, nil
}

// EnsureBuckets creates the three buckets if they do not exist yet. Called
// once at startup.
func (s *Store) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.UploadBucket, s.ResultBucket, s.ReportBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		s.logger.Info("created storage bucket", "bucket", bucket)
	}
	return nil
}

func (s *Store) Upload(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, objectName, err)
	}
	return nil
}

func (s *Store) Download(ctx context.Context, bucket, objectName string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", bucket, objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucket, objectName, err)
	}
	return data, nil
}

func (s *Store) Buckets() (upload, result, report string) {
	return s.UploadBucket, s.ResultBucket, s.ReportBucket
}

// BlobName prefixes the sanitized filename with a timestamp so repeated
// uploads of the same file never collide.
func BlobName(fileName string, now time.Time) string {
	base := filepath.Base(fileName)
	base = strings.ReplaceAll(base, " ", "_")
	return fmt.Sprintf("%s_%s", now.Format("20060102_150405"), base)
}
