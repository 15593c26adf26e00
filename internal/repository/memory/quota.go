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

// QuotaMemory implements repository.QuotaRepository.
type QuotaMemory struct {
	mu     sync.Mutex
	quotas map[string]model.TenantQuota
	now    func() time.Time
}

// NewQuotaMemory creates an empty quota repository.
func NewQuotaMemory() *QuotaMemory {
	return &QuotaMemory{quotas: make(map[string]model.TenantQuota), now: time.Now}
}

var _ repository.QuotaRepository = (*QuotaMemory)(nil)

func (r *QuotaMemory) GetOrCreate(_ context.Context, q model.TenantQuota) (*model.TenantQuota, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.quotas[q.TenantID]; ok {
		return &cur, nil
	}
	q.StorageUsedBytes = 0
	q.DocumentCount = 0
	q.UpdatedAt = r.now()
	r.quotas[q.TenantID] = q
	return &q, nil
}

func (r *QuotaMemory) Get(_ context.Context, tenantID string) (*model.TenantQuota, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotas[tenantID]
	if !ok {
		return nil, fmt.Errorf("get quota: %w", repository.ErrNotFound)
	}
	return &q, nil
}

func (r *QuotaMemory) Reserve(_ context.Context, tenantID string, bytes uint64) (*model.TenantQuota, error) {
	return r.update("reserve quota", tenantID, func(q *model.TenantQuota) error {
		if bytes > q.RemainingBytes() || q.DocumentCount+1 > q.DocumentLimit {
			return repository.ErrLimitExceeded
		}
		q.StorageUsedBytes += bytes
		q.DocumentCount++
		return nil
	})
}

func (r *QuotaMemory) ApplyUpload(_ context.Context, tenantID string, bytes uint64) error {
	_, err := r.update("apply upload", tenantID, func(q *model.TenantQuota) error {
		q.StorageUsedBytes += bytes
		q.DocumentCount++
		return nil
	})
	return err
}

func (r *QuotaMemory) ApplyDelete(_ context.Context, tenantID string, bytes uint64) error {
	_, err := r.update("apply delete", tenantID, func(q *model.TenantQuota) error {
		q.StorageUsedBytes = subClamp(q.StorageUsedBytes, bytes)
		q.DocumentCount = subClamp(q.DocumentCount, 1)
		return nil
	})
	return err
}

func (r *QuotaMemory) ApplyReplace(_ context.Context, tenantID string, oldBytes, newBytes uint64) error {
	_, err := r.update("apply replace", tenantID, func(q *model.TenantQuota) error {
		next := subClamp(q.StorageUsedBytes, oldBytes) + newBytes
		if newBytes > oldBytes && next > q.StorageLimitBytes {
			return repository.ErrLimitExceeded
		}
		q.StorageUsedBytes = next
		return nil
	})
	return err
}

func (r *QuotaMemory) SetUsage(_ context.Context, tenantID string, usage model.Usage) (*model.TenantQuota, error) {
	return r.update("set usage", tenantID, func(q *model.TenantQuota) error {
		q.StorageUsedBytes = usage.StorageBytes
		q.DocumentCount = usage.DocumentCount
		return nil
	})
}

func (r *QuotaMemory) SetLimits(_ context.Context, tenantID string, storageLimit, documentLimit uint64, tier string) (*model.TenantQuota, error) {
	return r.update("set limits", tenantID, func(q *model.TenantQuota) error {
		q.StorageLimitBytes = storageLimit
		q.DocumentLimit = documentLimit
		q.Tier = tier
		return nil
	})
}

func (r *QuotaMemory) ListTenants(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.quotas))
	for t := range r.quotas {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (r *QuotaMemory) update(op, tenantID string, fn func(q *model.TenantQuota) error) (*model.TenantQuota, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotas[tenantID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	if err := fn(&q); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	q.UpdatedAt = r.now()
	r.quotas[tenantID] = q
	return &q, nil
}

func subClamp(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
