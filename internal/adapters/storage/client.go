package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOArchive implements RawArchive using MinIO.
type MinIOArchive struct {
	client *minio.Client
	bucket string
}

// NewMinIOArchive creates a new MinIO-backed raw archive.
func NewMinIOArchive(cfg Config) (*MinIOArchive, error) {
	if !cfg.IsArchiveEnabled() {
		return nil, fmt.Errorf("raw archive is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOArchive{client: client, bucket: cfg.GetRawArchiveBucket()}, nil
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (a *MinIOArchive) EnsureBucketExists(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
		}
	}

	return nil
}

// Put uploads one raw batch under raw/{source}/{yyyy}/{mm}/{dd}/{runID}.{ext}.
func (a *MinIOArchive) Put(ctx context.Context, source, runID string, fetchedAt time.Time, contentType, ext string, body []byte) (string, error) {
	key := ObjectKey(source, runID, fetchedAt, ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"source": source,
			"run-id": runID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive batch %s: %w", key, err)
	}
	return key, nil
}

// Open downloads an archived batch.
func (a *MinIOArchive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return obj, nil
}

// ObjectKey builds the archive key for a batch. The date is taken in UTC.
func ObjectKey(source, runID string, fetchedAt time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	day := fetchedAt.UTC()
	return path.Join("raw", source,
		fmt.Sprintf("%04d", day.Year()),
		fmt.Sprintf("%02d", int(day.Month())),
		fmt.Sprintf("%02d", day.Day()),
		runID+"."+ext,
	)
}
