// Package storage archives raw source batches in S3-compatible object storage.
package storage

import (
	"context"
	"io"
	"time"
)

// RawArchive stores and retrieves the untouched bytes of a fetched batch.
type RawArchive interface {
	// Put writes one batch and returns the object key it was stored under.
	Put(ctx context.Context, source, runID string, fetchedAt time.Time, contentType, ext string, body []byte) (string, error)

	// Open returns a reader over a previously archived batch.
	// The caller is responsible for closing the returned io.ReadCloser.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// EnsureBucketExists creates the archive bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetRawArchiveBucket() string
	IsArchiveEnabled() bool
}
