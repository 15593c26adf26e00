package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"docvault/internal/model"
	"docvault/internal/storage"
)

// Entry is the search artifact of one document version. It is derived only from the
// document, so regenerating it for the same (document, version) yields identical bytes.
type Entry struct {
	DocumentID  string    `json:"document_id"`
	TenantID    string    `json:"tenant_id"`
	VersionID   string    `json:"version_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	SizeBytes   uint64    `json:"size_bytes"`
	StoragePath string    `json:"storage_path"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntryFor builds the artifact of a document's current version.
func EntryFor(d *model.Document) Entry {
	return Entry{
		DocumentID:  d.ID,
		TenantID:    d.TenantID,
		VersionID:   d.CurrentVersionID,
		Name:        d.Name,
		ContentType: d.ContentType,
		SizeBytes:   d.FileSizeBytes,
		StoragePath: d.StoragePath,
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// Equal reports whether e and o describe the same document state.
func (e Entry) Equal(o Entry) bool {
	return e.DocumentID == o.DocumentID &&
		e.TenantID == o.TenantID &&
		e.VersionID == o.VersionID &&
		e.Name == o.Name &&
		e.ContentType == o.ContentType &&
		e.SizeBytes == o.SizeBytes &&
		e.StoragePath == o.StoragePath &&
		e.UpdatedAt.Equal(o.UpdatedAt)
}

// Index stores search artifacts. Upsert overwrites and Remove of a missing entry
// succeeds, so both are safe under at-least-once delivery.
type Index interface {
	Upsert(ctx context.Context, e Entry) error
	Remove(ctx context.Context, tenantID, documentID string) error
	Get(ctx context.Context, tenantID, documentID string) (Entry, bool, error)
}

// ArtifactStore is the object store subset the artifact index needs.
type ArtifactStore interface {
	UploadBytes(ctx context.Context, data []byte, path, contentType string) (model.StoredObject, error)
	ReadAll(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// ArtifactIndex keeps entries as JSON objects at the metadata path of each document,
// where the search subsystem picks them up.
type ArtifactIndex struct {
	store ArtifactStore
}

// NewArtifactIndex creates an index writing through store.
func NewArtifactIndex(store ArtifactStore) *ArtifactIndex {
	return &ArtifactIndex{store: store}
}

var _ Index = (*ArtifactIndex)(nil)

func (x *ArtifactIndex) Upsert(ctx context.Context, e Entry) error {
	path, err := storage.PathFor(storage.PathMetadata, e.TenantID, e.DocumentID, "")
	if err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	_, err = x.store.UploadBytes(ctx, data, path, "application/json")
	return err
}

// Remove deletes the metadata and embedding artifacts of a document.
func (x *ArtifactIndex) Remove(ctx context.Context, tenantID, documentID string) error {
	for _, kind := range []storage.PathKind{storage.PathMetadata, storage.PathEmbedding} {
		path, err := storage.PathFor(kind, tenantID, documentID, "")
		if err != nil {
			return err
		}
		if err := x.store.Delete(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (x *ArtifactIndex) Get(ctx context.Context, tenantID, documentID string) (Entry, bool, error) {
	path, err := storage.PathFor(storage.PathMetadata, tenantID, documentID, "")
	if err != nil {
		return Entry{}, false, err
	}
	data, err := x.store.ReadAll(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return e, true, nil
}

// MemoryIndex is an in-process Index.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]Entry)}
}

var _ Index = (*MemoryIndex)(nil)

func key(tenantID, documentID string) string { return tenantID + "/" + documentID }

func (x *MemoryIndex) Upsert(_ context.Context, e Entry) error {
	x.mu.Lock()
	x.entries[key(e.TenantID, e.DocumentID)] = e
	x.mu.Unlock()
	return nil
}

func (x *MemoryIndex) Remove(_ context.Context, tenantID, documentID string) error {
	x.mu.Lock()
	delete(x.entries, key(tenantID, documentID))
	x.mu.Unlock()
	return nil
}

func (x *MemoryIndex) Get(_ context.Context, tenantID, documentID string) (Entry, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[key(tenantID, documentID)]
	return e, ok, nil
}

// Len returns the number of entries.
func (x *MemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}
