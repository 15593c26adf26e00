package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// Package memory holds in-process repository implementations used by the memory
// storage driver and by scenario tests. They honour the same atomicity as the
// Postgres implementations by serialising every call behind a mutex.

// DocumentMemory implements repository.DocumentRepository.
type DocumentMemory struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

// NewDocumentMemory creates an empty document repository.
func NewDocumentMemory() *DocumentMemory {
	return &DocumentMemory{docs: make(map[string]model.Document)}
}

var _ repository.DocumentRepository = (*DocumentMemory)(nil)

func (r *DocumentMemory) Create(_ context.Context, doc *model.Document) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; ok {
		return nil, fmt.Errorf("create document: %w", repository.ErrConflict)
	}
	r.docs[doc.ID] = *doc
	out := *doc
	return &out, nil
}

func (r *DocumentMemory) FindByID(_ context.Context, id string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, fmt.Errorf("find document: %w", repository.ErrNotFound)
	}
	return &d, nil
}

func (r *DocumentMemory) Update(_ context.Context, doc *model.Document, expect repository.Revision) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.docs[doc.ID]
	if !ok {
		return nil, fmt.Errorf("update document: %w", repository.ErrNotFound)
	}
	if repository.RevisionOf(&cur) != expect {
		return nil, fmt.Errorf("update document: %w", repository.ErrStale)
	}
	cur.Name = doc.Name
	cur.CurrentVersionID = doc.CurrentVersionID
	cur.Status = doc.Status
	cur.FileSizeBytes = doc.FileSizeBytes
	cur.ContentType = doc.ContentType
	cur.StoragePath = doc.StoragePath
	cur.UpdatedAt = doc.UpdatedAt
	r.docs[doc.ID] = cur
	return &cur, nil
}

func (r *DocumentMemory) List(_ context.Context, tenantID string, status model.DocumentStatus, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	r.mu.RLock()
	matched := make([]model.Document, 0)
	for _, d := range r.docs {
		if d.TenantID == tenantID && d.Status == status {
			matched = append(matched, d)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(max(pq.Offset, 0), total)
	end := total
	if pq.Limit > 0 {
		end = min(start+pq.Limit, total)
	}
	return &repository.PageResult[model.Document]{Items: matched[start:end], Total: total}, nil
}

func (r *DocumentMemory) ActiveUsage(_ context.Context, tenantID string) (model.Usage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var u model.Usage
	for _, d := range r.docs {
		if d.TenantID == tenantID && d.Status == model.DocumentActive {
			u.StorageBytes += d.FileSizeBytes
			u.DocumentCount++
		}
	}
	return u, nil
}
