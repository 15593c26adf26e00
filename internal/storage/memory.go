package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
	etag        string
	modified    time.Time
	metadata    map[string]string
}

// MemoryBackend keeps objects in process memory. Grants are HMAC-signed URLs that
// PutSigned and GetSigned honour. Used for local development and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string]memObject
	signer  *Signer
	now     func() time.Time
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemory creates an empty in-memory backend signing grants with signer.
func NewMemory(signer *Signer) *MemoryBackend {
	now := time.Now
	if signer != nil {
		now = signer.now
	}
	return &MemoryBackend{
		objects: make(map[string]memObject),
		signer:  signer,
		now:     now,
	}
}

func (b *MemoryBackend) Name() string   { return "memory" }
func (b *MemoryBackend) Bucket() string { return "memory" }

// Put stores the full content of r under key.
func (b *MemoryBackend) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, err
	}
	ct := opt.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	sum := md5.Sum(data)
	obj := memObject{
		data:        data,
		contentType: ct,
		etag:        hex.EncodeToString(sum[:]),
		modified:    b.now(),
		metadata:    opt.Metadata,
	}

	b.mu.Lock()
	b.objects[key] = obj
	b.mu.Unlock()

	return obj.info(key), nil
}

// Get returns a reader over a copy of the object content.
func (b *MemoryBackend) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	b.mu.RLock()
	obj, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return nil, ObjectInfo{}, markNotFound(errors.New("no such key: " + key))
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), obj.info(key), nil
}

// Stat returns object info.
func (b *MemoryBackend) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	b.mu.RLock()
	obj, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return ObjectInfo{}, markNotFound(errors.New("no such key: " + key))
	}
	return obj.info(key), nil
}

// Delete removes key; missing keys are ignored.
func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.objects, key)
	b.mu.Unlock()
	return nil
}

// Copy duplicates src into dst.
func (b *MemoryBackend) Copy(ctx context.Context, src, dst string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[src]
	if !ok {
		return ObjectInfo{}, markNotFound(errors.New("no such key: " + src))
	}
	obj.data = bytes.Clone(obj.data)
	obj.modified = b.now()
	b.objects[dst] = obj
	return obj.info(dst), nil
}

func (b *MemoryBackend) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if b.signer == nil {
		return "", markAuth(errors.New("memory backend has no signer"))
	}
	return b.signer.Sign(http.MethodPut, key, expiry, "")
}

func (b *MemoryBackend) PresignGet(ctx context.Context, key string, expiry time.Duration, disposition string) (string, error) {
	if b.signer == nil {
		return "", markAuth(errors.New("memory backend has no signer"))
	}
	return b.signer.Sign(http.MethodGet, key, expiry, disposition)
}

// PutSigned performs an upload through a grant, as a browser would.
func (b *MemoryBackend) PutSigned(ctx context.Context, rawURL string, r io.Reader, contentType string) (ObjectInfo, error) {
	if b.signer == nil {
		return ObjectInfo{}, ErrGrantInvalid
	}
	key, _, err := b.signer.Verify(rawURL, http.MethodPut)
	if err != nil {
		return ObjectInfo{}, err
	}
	return b.Put(ctx, key, r, PutObjectOptions{Size: -1, ContentType: contentType})
}

// GetSigned performs a download through a grant. The returned disposition is the
// Content-Disposition the response must carry.
func (b *MemoryBackend) GetSigned(ctx context.Context, rawURL string) (io.ReadCloser, ObjectInfo, string, error) {
	if b.signer == nil {
		return nil, ObjectInfo{}, "", ErrGrantInvalid
	}
	key, disposition, err := b.signer.Verify(rawURL, http.MethodGet)
	if err != nil {
		return nil, ObjectInfo{}, "", err
	}
	rc, info, err := b.Get(ctx, key)
	return rc, info, disposition, err
}

// Keys returns the stored keys, for tests and diagnostics.
func (b *MemoryBackend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	return out
}

func (o memObject) info(key string) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		ETag:         o.etag,
		ContentType:  o.contentType,
		LastModified: o.modified,
		Metadata:     o.metadata,
	}
}
