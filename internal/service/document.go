package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docvault/internal/model"
	"docvault/internal/quota"
	"docvault/internal/reindex"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

var (
	ErrIDRequired     = errors.New("id is required")
	ErrTenantRequired = errors.New("tenant is required")
	ErrNotFound       = errors.New("document not found")
	ErrReaderNil      = errors.New("reader is nil")
	ErrSizeRequired   = errors.New("content size is required")
	ErrInvalidName    = errors.New("invalid file name")
	ErrInvalidStatus  = errors.New("invalid document status")
	ErrInvalidState   = errors.New("invalid document state")
	ErrUploadMissing  = errors.New("uploaded object not found")
	ErrCorruptPath    = errors.New("stored path is not canonical")
	ErrNotQueued      = errors.New("reindex job was not queued")
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// PreparedUpload is handed to a browser uploading directly to object storage.
type PreparedUpload struct {
	DocumentID string        `json:"document_id"`
	Path       string        `json:"path"`
	Grant      storage.Grant `json:"grant"`
}

// DocumentService defines the use cases for handling documents. Every mutation enqueues a
// reindex job before it returns; quota is checked before any bytes are written.
type DocumentService interface {
	// Upload checks and reserves quota, writes the bytes, saves metadata and enqueues a reindex job.
	// Failures after the reservation release it, and failures after the write remove the object.
	Upload(ctx context.Context, tenantID string, r io.Reader, name, contentType string, size int64) (*model.Document, error)

	// PrepareUpload pre-checks quota and returns an upload grant for a new document.
	PrepareUpload(ctx context.Context, tenantID, name, contentType string, size int64) (*PreparedUpload, error)

	// CommitUpload records a document uploaded through a grant. It is idempotent.
	CommitUpload(ctx context.Context, tenantID, documentID, name string) (*model.Document, error)

	// Rename changes the display name. The stored object keeps its path.
	Rename(ctx context.Context, tenantID, id, newName string) (*model.Document, error)

	// ReplaceContent writes a new version of an active document.
	ReplaceContent(ctx context.Context, tenantID, id string, r io.Reader, contentType string, size int64) (*model.Document, error)

	// Trash hides an active document and releases its quota.
	Trash(ctx context.Context, tenantID, id string) (*model.Document, error)

	// Restore brings a trashed document back if it still fits the quota.
	Restore(ctx context.Context, tenantID, id string) (*model.Document, error)

	// Delete marks a document deleted and schedules removal of its bytes.
	Delete(ctx context.Context, tenantID, id string) error

	// Get returns a single non-deleted document of the tenant.
	Get(ctx context.Context, tenantID, id string) (*model.Document, error)

	// List returns documents with the given status (active when empty) using limit/offset.
	List(ctx context.Context, tenantID string, status model.DocumentStatus, limit, offset int) (*DocumentListResult, error)

	// DownloadGrant issues a read grant delivering the document as a named attachment.
	DownloadGrant(ctx context.Context, tenantID, id string) (storage.Grant, error)

	// Download streams the document content into sink.
	Download(ctx context.Context, tenantID, id string, sink io.Writer) (*model.Document, error)

	// QuotaSummary returns the tenant's quota for dashboards.
	QuotaSummary(ctx context.Context, tenantID string) (quota.Summary, error)

	// QueueStats returns the reindex queue depth per status.
	QueueStats(ctx context.Context) (model.QueueStats, error)
}

// ObjectStore is the part of *storage.ObjectStore the service needs.
type ObjectStore interface {
	Upload(ctx context.Context, r io.Reader, size int64, path, contentType string) (model.StoredObject, error)
	Stat(ctx context.Context, path string) (model.StoredObject, error)
	Delete(ctx context.Context, path string) error
	Copy(ctx context.Context, src, dst string) (model.StoredObject, error)
	IssueUploadGrant(ctx context.Context, path, contentType string) (storage.Grant, error)
	IssueDownloadGrant(ctx context.Context, path, suggestedName string) (storage.Grant, error)
	StreamTo(ctx context.Context, path string, sink io.Writer, suggestedName string) (model.StoredObject, error)
}

// Reindexer is the reindex queue as seen by the service.
type Reindexer interface {
	Enqueue(ctx context.Context, req reindex.Request) (*model.ReindexJob, error)
	Stats(ctx context.Context) (model.QueueStats, error)
}

// DeletionScheduler schedules removal of stored bytes.
type DeletionScheduler interface {
	Schedule(ctx context.Context, tenantID, documentID, path string) (*model.StorageDeletion, error)
}

// Deps are the collaborators of the document service.
type Deps struct {
	Documents repository.DocumentRepository
	Ledger    *quota.Ledger
	Store     ObjectStore
	Queue     Reindexer
	Deletions DeletionScheduler
	Logger    zerolog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	docs      repository.DocumentRepository
	ledger    *quota.Ledger
	store     ObjectStore
	queue     Reindexer
	deletions DeletionScheduler
	log       zerolog.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(d Deps) DocumentService {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &documentService{
		docs:      d.Documents,
		ledger:    d.Ledger,
		store:     d.Store,
		queue:     d.Queue,
		deletions: d.Deletions,
		log:       d.Logger.With().Str("component", "documents").Logger(),
		now:       d.Clock,
		tracer:    otel.Tracer("docvault/internal/service"),
	}
}

type correlationKey struct{}

// WithCorrelationID attaches the id that links a request to the reindex job it enqueues.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id carried by ctx, if any.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func (s *documentService) start(ctx context.Context, op, tenantID string) (context.Context, trace.Span) {
	if CorrelationID(ctx) == "" {
		ctx = WithCorrelationID(ctx, uuid.NewString())
	}
	return s.tracer.Start(ctx, "DocumentService."+op, trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("correlation.id", CorrelationID(ctx)),
	))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *documentService) Upload(ctx context.Context, tenantID string, r io.Reader, name, contentType string, size int64) (doc *model.Document, err error) {
	ctx, span := s.start(ctx, "Upload", tenantID)
	defer func() { finish(span, err) }()

	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if r == nil {
		return nil, ErrReaderNil
	}
	if size < 0 {
		return nil, ErrSizeRequired
	}
	docID := uuid.NewString()
	path, err := storage.PathFor(storage.PathDocument, tenantID, docID, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	bytes := uint64(size)

	// A doomed upload never reaches the store.
	if err := s.ledger.Check(ctx, tenantID, bytes); err != nil {
		return nil, err
	}
	if err := s.ledger.Reserve(ctx, tenantID, bytes); err != nil {
		return nil, err
	}

	obj, err := s.store.Upload(ctx, r, size, path, contentType)
	if err != nil {
		s.release(ctx, tenantID, bytes)
		return nil, fmt.Errorf("upload to storage: %w", err)
	}
	if obj.SizeBytes != 0 && obj.SizeBytes != bytes {
		// The declared size was wrong; charge what was actually stored.
		if err := s.ledger.ApplyReplace(ctx, tenantID, bytes, obj.SizeBytes); err != nil {
			s.release(ctx, tenantID, bytes)
			s.discard(ctx, path)
			return nil, err
		}
		bytes = obj.SizeBytes
	}

	now := s.now().UTC()
	stored, err := s.docs.Create(ctx, &model.Document{
		ID:               docID,
		TenantID:         tenantID,
		Name:             name,
		OriginalFilename: name,
		CurrentVersionID: uuid.NewString(),
		Status:           model.DocumentActive,
		FileSizeBytes:    bytes,
		ContentType:      contentTypeOf(contentType, obj),
		StoragePath:      path,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		s.release(ctx, tenantID, bytes)
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, path); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	if err := s.enqueue(ctx, stored, model.JobOpUpsert); err != nil {
		return nil, err
	}
	docEvent(ctx, s.log.Info(), "document_uploaded", stored).Uint64("size_bytes", bytes).Msg("")
	return stored, nil
}

func (s *documentService) PrepareUpload(ctx context.Context, tenantID, name, contentType string, size int64) (p *PreparedUpload, err error) {
	ctx, span := s.start(ctx, "PrepareUpload", tenantID)
	defer func() { finish(span, err) }()

	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if size < 0 {
		return nil, ErrSizeRequired
	}
	docID := uuid.NewString()
	path, err := storage.PathFor(storage.PathDocument, tenantID, docID, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	if err := s.ledger.Check(ctx, tenantID, uint64(size)); err != nil {
		return nil, err
	}
	grant, err := s.store.IssueUploadGrant(ctx, path, contentType)
	if err != nil {
		return nil, err
	}
	return &PreparedUpload{DocumentID: docID, Path: path, Grant: grant}, nil
}

func (s *documentService) CommitUpload(ctx context.Context, tenantID, documentID, name string) (doc *model.Document, err error) {
	ctx, span := s.start(ctx, "CommitUpload", tenantID)
	defer func() { finish(span, err) }()

	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if documentID == "" {
		return nil, ErrIDRequired
	}
	path, err := storage.PathFor(storage.PathDocument, tenantID, documentID, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidName, err)
	}

	existing, err := s.docs.FindByID(ctx, documentID)
	switch {
	case err == nil:
		if existing.TenantID == tenantID && existing.StoragePath == path && existing.Status != model.DocumentDeleted {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: document id is already in use", ErrInvalidState)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	obj, err := s.store.Stat(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUploadMissing
		}
		return nil, err
	}
	if err := s.ledger.Reserve(ctx, tenantID, obj.SizeBytes); err != nil {
		s.discard(ctx, path)
		return nil, err
	}

	now := s.now().UTC()
	stored, err := s.docs.Create(ctx, &model.Document{
		ID:               documentID,
		TenantID:         tenantID,
		Name:             name,
		OriginalFilename: name,
		CurrentVersionID: uuid.NewString(),
		Status:           model.DocumentActive,
		FileSizeBytes:    obj.SizeBytes,
		ContentType:      contentTypeOf("", obj),
		StoragePath:      path,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		s.release(ctx, tenantID, obj.SizeBytes)
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	if err := s.enqueue(ctx, stored, model.JobOpUpsert); err != nil {
		return nil, err
	}
	docEvent(ctx, s.log.Info(), "document_committed", stored).Uint64("size_bytes", obj.SizeBytes).Msg("")
	return stored, nil
}

func (s *documentService) Rename(ctx context.Context, tenantID, id, newName string) (doc *model.Document, err error) {
	ctx, span := s.start(ctx, "Rename", tenantID)
	defer func() { finish(span, err) }()

	doc, err = s.owned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if _, err := storage.PathFor(storage.PathDocument, tenantID, id, newName); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidName, err)
	}

	prev := repository.RevisionOf(doc)
	doc.Name = newName
	doc.UpdatedAt = s.now().UTC()
	updated, err := s.docs.Update(ctx, doc, prev)
	if err != nil {
		return nil, s.mapRepo(err)
	}
	if err := s.enqueue(ctx, updated, model.JobOpUpsert); err != nil {
		return nil, err
	}
	docEvent(ctx, s.log.Info(), "document_renamed", updated).Msg("")
	return updated, nil
}

func (s *documentService) ReplaceContent(ctx context.Context, tenantID, id string, r io.Reader, contentType string, size int64) (doc *model.Document, err error) {
	ctx, span := s.start(ctx, "ReplaceContent", tenantID)
	defer func() { finish(span, err) }()

	if r == nil {
		return nil, ErrReaderNil
	}
	if size < 0 {
		return nil, ErrSizeRequired
	}
	doc, err = s.owned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsActive() {
		return nil, fmt.Errorf("%w: document is %s", ErrInvalidState, doc.Status)
	}
	if err := s.checkPath(tenantID, doc); err != nil {
		return nil, err
	}

	// The new bytes are staged beside the canonical object and only published once the
	// metadata has moved to the new version, so a lost race or a failed save leaves the
	// current version untouched.
	staged, err := storage.PathFor(storage.PathTempUpload, tenantID, id, doc.OriginalFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	oldBytes, newBytes := doc.FileSizeBytes, uint64(size)
	if err := s.ledger.ApplyReplace(ctx, tenantID, oldBytes, newBytes); err != nil {
		return nil, err
	}
	obj, err := s.store.Upload(ctx, r, size, staged, contentType)
	if err != nil {
		s.revertReplace(ctx, tenantID, oldBytes, newBytes)
		return nil, fmt.Errorf("upload to storage: %w", err)
	}
	defer s.discard(ctx, staged)

	before := *doc
	doc.CurrentVersionID = uuid.NewString()
	doc.FileSizeBytes = newBytes
	doc.ContentType = contentTypeOf(contentType, obj)
	doc.UpdatedAt = s.now().UTC()
	updated, err := s.docs.Update(ctx, doc, repository.RevisionOf(&before))
	if err != nil {
		s.revertReplace(ctx, tenantID, oldBytes, newBytes)
		return nil, s.mapRepo(err)
	}
	if _, err := s.store.Copy(ctx, staged, updated.StoragePath); err != nil {
		s.rollbackReplace(ctx, &before, updated)
		return nil, fmt.Errorf("publish new version: %w", err)
	}
	if err := s.enqueue(ctx, updated, model.JobOpUpsert); err != nil {
		return nil, err
	}
	docEvent(ctx, s.log.Info(), "document_replaced", updated).
		Uint64("old_size_bytes", oldBytes).
		Uint64("size_bytes", newBytes).
		Msg("")
	return updated, nil
}

func (s *documentService) Trash(ctx context.Context, tenantID, id string) (doc *model.Document, err error) {
	ctx, span := s.start(ctx, "Trash", tenantID)
	defer func() { finish(span, err) }()

	doc, err = s.owned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsActive() {
		return nil, fmt.Errorf("%w: document is %s", ErrInvalidState, doc.Status)
	}

	prev := repository.RevisionOf(doc)
	doc.Status = model.DocumentTrashed
	doc.UpdatedAt = s.now().UTC()
	updated, err := s.docs.Update(ctx, doc, prev)
	if err != nil {
		return nil, s.mapRepo(err)
	}
	s.release(ctx, tenantID, updated.FileSizeBytes)
	if err := s.enqueue(ctx, updated, model.JobOpUpsert); err != nil {
		return nil, err
	}
	docEvent(ctx, s.log.Info(), "document_trashed", updated).Msg("")
	return updated, nil
}

func (s *documentService) Restore(ctx context.Context, tenantID, id string) (doc *model.Document, err error) {
	ctx, span := s.start(ctx, "Restore", tenantID)
	defer func() { finish(span, err) }()

	doc, err = s.owned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.DocumentTrashed {
		return nil, fmt.Errorf("%w: document is %s", ErrInvalidState, doc.Status)
	}
	if err := s.ledger.Reserve(ctx, tenantID, doc.FileSizeBytes); err != nil {
		return nil, err
	}

	prev := repository.RevisionOf(doc)
	doc.Status = model.DocumentActive
	doc.UpdatedAt = s.now().UTC()
	updated, err := s.docs.Update(ctx, doc, prev)
	if err != nil {
		s.release(ctx, tenantID, doc.FileSizeBytes)
		return nil, s.mapRepo(err)
	}
	if err := s.enqueue(ctx, updated, model.JobOpUpsert); err != nil {
		return nil, err
	}
	docEvent(ctx, s.log.Info(), "document_restored", updated).Msg("")
	return updated, nil
}

// Delete hides the document at once; the bytes are reclaimed later by the purger.
func (s *documentService) Delete(ctx context.Context, tenantID, id string) (err error) {
	ctx, span := s.start(ctx, "Delete", tenantID)
	defer func() { finish(span, err) }()

	doc, err := s.owned(ctx, tenantID, id)
	if err != nil {
		return err
	}
	wasActive := doc.IsActive()

	// Only the call that moves the row out of its observed state releases quota.
	prev := repository.RevisionOf(doc)
	doc.Status = model.DocumentDeleted
	doc.UpdatedAt = s.now().UTC()
	updated, err := s.docs.Update(ctx, doc, prev)
	if err != nil {
		return s.mapRepo(err)
	}
	if wasActive {
		s.release(ctx, tenantID, updated.FileSizeBytes)
	}
	// The metadata is already gone, so the bytes are scheduled even when the job is not.
	qerr := s.enqueue(ctx, updated, model.JobOpRemove)
	if _, err := s.deletions.Schedule(ctx, tenantID, updated.ID, updated.StoragePath); err != nil {
		docEvent(ctx, s.log.Error(), "deletion_not_scheduled", updated).Err(err).Msg("")
		return errors.Join(qerr, fmt.Errorf("schedule storage deletion: %w", err))
	}
	if qerr != nil {
		return qerr
	}
	docEvent(ctx, s.log.Info(), "document_deleted", updated).Msg("")
	return nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, tenantID, id string) (*model.Document, error) {
	return s.owned(ctx, tenantID, id)
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, tenantID string, status model.DocumentStatus, limit, offset int) (*DocumentListResult, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	switch status {
	case "":
		status = model.DocumentActive
	case model.DocumentActive, model.DocumentTrashed:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.docs.List(ctx, tenantID, status, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *documentService) DownloadGrant(ctx context.Context, tenantID, id string) (g storage.Grant, err error) {
	ctx, span := s.start(ctx, "DownloadGrant", tenantID)
	defer func() { finish(span, err) }()

	doc, err := s.readable(ctx, tenantID, id)
	if err != nil {
		return storage.Grant{}, err
	}
	return s.store.IssueDownloadGrant(ctx, doc.StoragePath, doc.Name)
}

func (s *documentService) Download(ctx context.Context, tenantID, id string, sink io.Writer) (doc *model.Document, err error) {
	ctx, span := s.start(ctx, "Download", tenantID)
	defer func() { finish(span, err) }()

	doc, err = s.readable(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.StreamTo(ctx, doc.StoragePath, sink, doc.Name); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentService) QuotaSummary(ctx context.Context, tenantID string) (quota.Summary, error) {
	if tenantID == "" {
		return quota.Summary{}, ErrTenantRequired
	}
	return s.ledger.Summary(ctx, tenantID)
}

func (s *documentService) QueueStats(ctx context.Context) (model.QueueStats, error) {
	return s.queue.Stats(ctx)
}

// owned loads a non-deleted document of tenantID. Documents of other tenants are
// reported as missing.
func (s *documentService) owned(ctx context.Context, tenantID, id string) (*model.Document, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepo(err)
	}
	if doc.TenantID != tenantID || doc.Status == model.DocumentDeleted {
		return nil, ErrNotFound
	}
	return doc, nil
}

// readable loads an active document whose stored path is canonical for tenantID.
func (s *documentService) readable(ctx context.Context, tenantID, id string) (*model.Document, error) {
	doc, err := s.owned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsActive() {
		return nil, fmt.Errorf("%w: document is %s", ErrInvalidState, doc.Status)
	}
	if err := s.checkPath(tenantID, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentService) checkPath(tenantID string, doc *model.Document) error {
	if err := storage.ValidateCanonicalPath(doc.StoragePath, tenantID, doc.OriginalFilename); err != nil {
		s.log.Error().
			Str("event", "non_canonical_path").
			Str("tenant_id", tenantID).
			Str("document_id", doc.ID).
			Str("path", doc.StoragePath).
			Err(err).
			Msg("")
		return fmt.Errorf("%w: %w", ErrCorruptPath, err)
	}
	return nil
}

func (s *documentService) enqueue(ctx context.Context, doc *model.Document, op model.JobOp) error {
	_, err := s.queue.Enqueue(ctx, reindex.Request{
		DocumentID:    doc.ID,
		TenantID:      doc.TenantID,
		VersionID:     doc.CurrentVersionID,
		CorrelationID: CorrelationID(ctx),
		Op:            op,
	})
	if err != nil {
		docEvent(ctx, s.log.Error(), "reindex_not_queued", doc).Err(err).Msg("")
		return fmt.Errorf("%w: %w", ErrNotQueued, err)
	}
	return nil
}

// release returns bytes and one document to the tenant. A failure leaves drift that
// reconciliation corrects, so it is logged rather than returned.
func (s *documentService) release(ctx context.Context, tenantID string, bytes uint64) {
	if err := s.ledger.ApplyDelete(ctx, tenantID, bytes); err != nil {
		s.log.Error().
			Str("event", "quota_release_failed").
			Str("tenant_id", tenantID).
			Uint64("bytes", bytes).
			Str("correlation_id", CorrelationID(ctx)).
			Err(err).
			Msg("")
	}
}

func (s *documentService) revertReplace(ctx context.Context, tenantID string, oldBytes, newBytes uint64) {
	if err := s.ledger.ApplyReplace(ctx, tenantID, newBytes, oldBytes); err != nil {
		s.log.Error().
			Str("event", "quota_revert_failed").
			Str("tenant_id", tenantID).
			Uint64("old_size_bytes", oldBytes).
			Uint64("size_bytes", newBytes).
			Err(err).
			Msg("")
	}
}

// rollbackReplace moves the metadata back to the version the object store still holds.
// The quota is reverted only when the metadata went back with it.
func (s *documentService) rollbackReplace(ctx context.Context, before, current *model.Document) {
	restored := *before
	restored.UpdatedAt = s.now().UTC()
	if _, err := s.docs.Update(ctx, &restored, repository.RevisionOf(current)); err != nil {
		docEvent(ctx, s.log.Error(), "replace_rollback_failed", current).Err(err).Msg("")
		return
	}
	s.revertReplace(ctx, before.TenantID, before.FileSizeBytes, current.FileSizeBytes)
}

func (s *documentService) discard(ctx context.Context, path string) {
	if err := s.store.Delete(ctx, path); err != nil {
		s.log.Error().Str("event", "orphan_object").Str("path", path).Err(err).Msg("")
	}
}

func (s *documentService) mapRepo(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStale):
		return fmt.Errorf("%w: document changed concurrently", ErrInvalidState)
	}
	return err
}

func docEvent(ctx context.Context, ev *zerolog.Event, event string, doc *model.Document) *zerolog.Event {
	return ev.
		Str("event", event).
		Str("tenant_id", doc.TenantID).
		Str("document_id", doc.ID).
		Str("version_id", doc.CurrentVersionID).
		Str("correlation_id", CorrelationID(ctx))
}

func contentTypeOf(declared string, obj model.StoredObject) string {
	switch {
	case declared != "":
		return declared
	case obj.ContentType != "":
		return obj.ContentType
	default:
		return "application/octet-stream"
	}
}
