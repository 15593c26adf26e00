package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DeletionMemory implements repository.DeletionRepository.
type DeletionMemory struct {
	mu   sync.Mutex
	rows map[string]model.StorageDeletion
}

// NewDeletionMemory creates an empty deletion repository.
func NewDeletionMemory() *DeletionMemory {
	return &DeletionMemory{rows: make(map[string]model.StorageDeletion)}
}

var _ repository.DeletionRepository = (*DeletionMemory)(nil)

func (r *DeletionMemory) Schedule(_ context.Context, d *model.StorageDeletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[d.ID]; ok {
		return fmt.Errorf("schedule deletion: %w", repository.ErrConflict)
	}
	r.rows[d.ID] = *d
	return nil
}

func (r *DeletionMemory) Due(_ context.Context, now time.Time, limit int) ([]model.StorageDeletion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.StorageDeletion, 0)
	for _, d := range r.rows {
		if d.CompletedAt == nil && !d.NextAttemptAt.After(now) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextAttemptAt.Equal(out[j].NextAttemptAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextAttemptAt.Before(out[j].NextAttemptAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *DeletionMemory) MarkDone(_ context.Context, id string, completedAt time.Time) error {
	return r.update("mark deletion done", id, func(d *model.StorageDeletion) {
		d.Attempts++
		d.LastError = ""
		d.CompletedAt = &completedAt
	})
}

func (r *DeletionMemory) MarkFailed(_ context.Context, id string, lastError string, nextAttemptAt time.Time) error {
	return r.update("mark deletion failed", id, func(d *model.StorageDeletion) {
		d.Attempts++
		d.LastError = lastError
		d.NextAttemptAt = nextAttemptAt
	})
}

func (r *DeletionMemory) CountPending(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.rows {
		if d.CompletedAt == nil {
			n++
		}
	}
	return n, nil
}

// Get returns a deletion by id, for tests and diagnostics.
func (r *DeletionMemory) Get(id string) (model.StorageDeletion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	return d, ok
}

// All returns every deletion, for tests and diagnostics.
func (r *DeletionMemory) All() []model.StorageDeletion {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.StorageDeletion, 0, len(r.rows))
	for _, d := range r.rows {
		out = append(out, d)
	}
	return out
}

func (r *DeletionMemory) update(op, id string, fn func(d *model.StorageDeletion)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	fn(&d)
	r.rows[id] = d
	return nil
}
