package storage

import (
	"context"
	"io"
	"time"
)

// Package storage contains the object store used for document bytes and search artifacts.
// Backends talk to an S3-compatible service (MinIO, AWS S3) or keep objects in memory;
// ObjectStore wraps a backend with canonical paths, signed grants and the retry policy.

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Backend is an S3-compatible object storage client.
// Implementations mark missing objects with ErrNotFound and credential or configuration
// faults with ErrAuthFailure; any other error is treated as transient by ObjectStore.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Bucket returns the bucket objects are stored in.
	Bucket() string
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Stat returns object info without reading content.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// Copy duplicates the object at src into dst inside the bucket, replacing dst.
	Copy(ctx context.Context, src, dst string) (ObjectInfo, error)
	// PresignPut returns a time-limited URL that lets a client upload the object.
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	// PresignGet returns a time-limited URL that can be used to download the object without credentials.
	// A non-empty disposition is returned as the Content-Disposition of the download response.
	PresignGet(ctx context.Context, key string, expiry time.Duration, disposition string) (string, error)
}

// Grant is a time-bounded permission to read or write one object.
type Grant struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the grant is no longer usable at now.
func (g Grant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}
