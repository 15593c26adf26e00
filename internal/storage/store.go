package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"docvault/internal/metrics"
	"docvault/internal/model"
)

// Options configure an ObjectStore.
type Options struct {
	Retry       RetryPolicy
	UploadTTL   time.Duration
	DownloadTTL time.Duration
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	// Clock is used for grant expiry; defaults to time.Now.
	Clock func() time.Time
}

// ObjectStore gives callers tenant-scoped, time-bounded access to object bytes.
// Every network call goes through the retry policy; callers see ErrNotFound,
// ErrAuthFailure or ErrTempUnavailable wrapped in *Error. It never touches quota or the
// reindex queue. Safe for concurrent use.
type ObjectStore struct {
	backend     Backend
	retry       RetryPolicy
	uploadTTL   time.Duration
	downloadTTL time.Duration
	metrics     *metrics.Metrics
	log         zerolog.Logger
	now         func() time.Time
}

// NewObjectStore wraps backend with the retry policy and grant windows.
func NewObjectStore(backend Backend, opt Options) *ObjectStore {
	if opt.UploadTTL <= 0 {
		opt.UploadTTL = 15 * time.Minute
	}
	if opt.DownloadTTL <= 0 {
		opt.DownloadTTL = time.Hour
	}
	if opt.Metrics == nil {
		opt.Metrics = metrics.New(nil)
	}
	if opt.Clock == nil {
		opt.Clock = time.Now
	}
	return &ObjectStore{
		backend:     backend,
		retry:       opt.Retry.normalized(),
		uploadTTL:   opt.UploadTTL,
		downloadTTL: opt.DownloadTTL,
		metrics:     opt.Metrics,
		log:         opt.Logger.With().Str("component", "objectstore").Str("backend", backend.Name()).Logger(),
		now:         opt.Clock,
	}
}

// Bucket returns the bucket of the underlying backend.
func (s *ObjectStore) Bucket() string {
	return s.backend.Bucket()
}

// IssueUploadGrant returns a write-scoped grant for path valid for the upload window.
// It does not touch storage.
func (s *ObjectStore) IssueUploadGrant(ctx context.Context, path, contentType string) (Grant, error) {
	expires := s.now().Add(s.uploadTTL)
	u, err := s.backend.PresignPut(ctx, path, contentType, s.uploadTTL)
	if err != nil {
		return Grant{}, s.fail("presign_put", path, err)
	}
	return Grant{URL: u, Method: http.MethodPut, Path: path, ExpiresAt: expires}, nil
}

// IssueDownloadGrant returns a read-scoped grant for path valid for the download window.
// With a suggested file name the response is delivered as a named attachment.
func (s *ObjectStore) IssueDownloadGrant(ctx context.Context, path, suggestedName string) (Grant, error) {
	expires := s.now().Add(s.downloadTTL)
	u, err := s.backend.PresignGet(ctx, path, s.downloadTTL, AttachmentDisposition(suggestedName))
	if err != nil {
		return Grant{}, s.fail("presign_get", path, err)
	}
	return Grant{URL: u, Method: http.MethodGet, Path: path, ExpiresAt: expires}, nil
}

// Exists reports whether an object is stored at path.
func (s *ObjectStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.Stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Stat returns the stored object at path.
func (s *ObjectStore) Stat(ctx context.Context, path string) (model.StoredObject, error) {
	info, err := do(ctx, s, "stat", path, func() (ObjectInfo, error) {
		return s.backend.Stat(ctx, path)
	})
	if err != nil {
		return model.StoredObject{}, err
	}
	return s.stored(path, info), nil
}

// Delete removes the object at path. Deleting an absent object succeeds.
func (s *ObjectStore) Delete(ctx context.Context, path string) error {
	_, err := do(ctx, s, "delete", path, func() (struct{}, error) {
		return struct{}{}, s.backend.Delete(ctx, path)
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// Copy duplicates the object at src into dst without moving the bytes through this process.
func (s *ObjectStore) Copy(ctx context.Context, src, dst string) (model.StoredObject, error) {
	info, err := do(ctx, s, "copy", dst, func() (ObjectInfo, error) {
		return s.backend.Copy(ctx, src, dst)
	})
	if err != nil {
		return model.StoredObject{}, err
	}
	return s.stored(dst, info), nil
}

// UploadBytes writes data to path, replacing any existing object.
func (s *ObjectStore) UploadBytes(ctx context.Context, data []byte, path, contentType string) (model.StoredObject, error) {
	return s.Upload(ctx, bytes.NewReader(data), int64(len(data)), path, contentType)
}

// Upload streams r to path. Readers implementing io.Seeker are rewound and retried;
// other readers get a single attempt since their bytes cannot be replayed.
func (s *ObjectStore) Upload(ctx context.Context, r io.Reader, size int64, path, contentType string) (model.StoredObject, error) {
	seeker, replayable := r.(io.Seeker)
	var start int64
	if replayable {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			replayable = false
		}
		start = pos
	}

	policy := s.retry
	if !replayable {
		policy.MaxAttempts = 1
	}

	attempt := 0
	info, err := doWith(ctx, s, policy, "put", path, func() (ObjectInfo, error) {
		attempt++
		if attempt > 1 {
			if _, err := seeker.Seek(start, io.SeekStart); err != nil {
				return ObjectInfo{}, fmt.Errorf("rewind upload: %w", err)
			}
		}
		return s.backend.Put(ctx, path, r, PutObjectOptions{Size: size, ContentType: contentType})
	})
	if err != nil {
		return model.StoredObject{}, err
	}
	if info.ContentType == "" {
		info.ContentType = contentType
	}
	return s.stored(path, info), nil
}

// ReadAll returns the full content at path. The whole read is retried.
func (s *ObjectStore) ReadAll(ctx context.Context, path string) ([]byte, error) {
	return do(ctx, s, "get", path, func() ([]byte, error) {
		rc, _, err := s.backend.Get(ctx, path)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	})
}

// headerSetter is implemented by sinks that can carry response headers (e.g. *fiber.Ctx).
type headerSetter interface {
	Set(key, value string)
}

// StreamTo copies the object at path into sink. Opening the object is retried; once bytes
// flow, a failure is returned as is since the sink may already hold partial content.
// Sinks able to set headers receive Content-Type and, with a suggested name, Content-Disposition.
func (s *ObjectStore) StreamTo(ctx context.Context, path string, sink io.Writer, suggestedName string) (model.StoredObject, error) {
	type opened struct {
		rc   io.ReadCloser
		info ObjectInfo
	}
	o, err := do(ctx, s, "get", path, func() (opened, error) {
		rc, info, err := s.backend.Get(ctx, path)
		return opened{rc: rc, info: info}, err
	})
	if err != nil {
		return model.StoredObject{}, err
	}
	defer o.rc.Close()

	if hs, ok := sink.(headerSetter); ok {
		ct := o.info.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		hs.Set("Content-Type", ct)
		if d := AttachmentDisposition(suggestedName); d != "" {
			hs.Set("Content-Disposition", d)
		}
	}

	if _, err := io.Copy(sink, o.rc); err != nil {
		return model.StoredObject{}, &Error{Op: "stream", Path: path, Kind: ErrTempUnavailable, Err: err}
	}
	return s.stored(path, o.info), nil
}

func (s *ObjectStore) stored(path string, info ObjectInfo) model.StoredObject {
	var size uint64
	if info.Size > 0 {
		size = uint64(info.Size)
	}
	return model.StoredObject{
		Path:        path,
		Bucket:      s.backend.Bucket(),
		ContentType: info.ContentType,
		SizeBytes:   size,
		ETag:        info.ETag,
	}
}

// fail wraps an error from a call that is not retried.
func (s *ObjectStore) fail(op, path string, err error) error {
	kind := kindOf(err)
	s.metrics.StorageFailures.WithLabelValues(op, kindLabel(kind)).Inc()
	if kind == ErrAuthFailure {
		s.log.Error().Str("event", "storage_auth_failure").Str("operation", op).Str("path", path).Err(err).Msg("")
	}
	return &Error{Op: op, Path: path, Kind: kind, Err: err}
}

func do[T any](ctx context.Context, s *ObjectStore, op, path string, fn func() (T, error)) (T, error) {
	return doWith(ctx, s, s.retry, op, path, fn)
}

func doWith[T any](ctx context.Context, s *ObjectStore, p RetryPolicy, op, path string, fn func() (T, error)) (T, error) {
	counted := func() (T, error) {
		v, err := fn()
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.StorageAttempts.WithLabelValues(op, outcome).Inc()
		return v, err
	}
	notify := func(err error, next time.Duration) {
		s.metrics.StorageRetries.WithLabelValues(op).Inc()
		s.log.Warn().
			Str("event", "storage_retry").
			Str("operation", op).
			Str("path", path).
			Dur("backoff", next).
			Err(err).
			Msg("")
	}

	v, err := retry(ctx, p, counted, notify)
	if err != nil {
		var zero T
		return zero, s.fail(op, path, err)
	}
	return v, nil
}

// AttachmentDisposition renders a Content-Disposition header value for name,
// or "" when name is empty.
func AttachmentDisposition(name string) string {
	if name == "" {
		return ""
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
