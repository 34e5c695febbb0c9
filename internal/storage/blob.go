package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Config selects the bucket used for uploaded documents.
type Config struct {
	// URL is a gocloud bucket URL such as file:///var/lib/hireflow/uploads or mem://.
	URL string
	// PublicBaseURL prefixes object keys to build the URL stored on records.
	PublicBaseURL string
}

// BlobStore persists uploaded documents in a gocloud bucket.
type BlobStore struct {
	bucket  *blob.Bucket
	baseURL string
}

// Open opens the configured bucket.
func Open(ctx context.Context, cfg Config) (*BlobStore, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, errors.New("storage: bucket url is required")
	}

	bucket, err := blob.OpenBucket(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("storage: open bucket: %w", err)
	}
	return NewBlobStore(bucket, cfg.PublicBaseURL), nil
}

// NewBlobStore wraps an already opened bucket.
func NewBlobStore(bucket *blob.Bucket, publicBaseURL string) *BlobStore {
	return &BlobStore{
		bucket:  bucket,
		baseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// Put writes data under key and returns its public URL.
func (s *BlobStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	opts := &blob.WriterOptions{ContentType: contentType}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete removes the object stored under key. Missing objects are ignored.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Delete(ctx, key)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.bucket.Exists(ctx, key)
}

// URL returns the public URL for key.
func (s *BlobStore) URL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.baseURL == "" {
		return path.Join("/", escaped)
	}
	return s.baseURL + "/" + strings.TrimLeft(escaped, "/")
}

// Ping checks the bucket is reachable.
func (s *BlobStore) Ping(ctx context.Context) error {
	_, err := s.bucket.IsAccessible(ctx)
	return err
}

// Close releases the bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

func isNotFound(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
