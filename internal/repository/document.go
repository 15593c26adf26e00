package repository

import (
	"context"

	"docvault/internal/model"
)

// Revision identifies the state a conditional document update was computed from.
type Revision struct {
	Status    model.DocumentStatus
	VersionID string
}

// RevisionOf returns the current revision of doc.
func RevisionOf(doc *model.Document) Revision {
	return Revision{Status: doc.Status, VersionID: doc.CurrentVersionID}
}

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record.
	// Returns the stored document (may include values set by the DB).
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// Update overwrites the mutable fields of a document (name, version, status, size,
	// content type, storage path, updated_at) only while the stored row still has the
	// expected status and version. Returns ErrStale when it does not and ErrNotFound if
	// the row is gone.
	Update(ctx context.Context, doc *model.Document, expect Revision) (*model.Document, error)

	// List returns a page of a tenant's documents with the given status and the total count.
	List(ctx context.Context, tenantID string, status model.DocumentStatus, pq PageQuery) (*PageResult[model.Document], error)

	// ActiveUsage sums file sizes and counts the active documents of a tenant.
	ActiveUsage(ctx context.Context, tenantID string) (model.Usage, error)
}

// QuotaRepository persists tenant quota counters. Every mutation is a single
// statement so concurrent adjustments never lose updates.
type QuotaRepository interface {
	// GetOrCreate inserts q when no row exists for q.TenantID and returns the stored row.
	GetOrCreate(ctx context.Context, q model.TenantQuota) (*model.TenantQuota, error)

	// Get returns the quota of a tenant, or ErrNotFound.
	Get(ctx context.Context, tenantID string) (*model.TenantQuota, error)

	// Reserve adds bytes and one document only if both stay within the limits.
	// Returns ErrLimitExceeded otherwise.
	Reserve(ctx context.Context, tenantID string, bytes uint64) (*model.TenantQuota, error)

	// ApplyUpload adds bytes and one document unconditionally.
	ApplyUpload(ctx context.Context, tenantID string, bytes uint64) error

	// ApplyDelete subtracts bytes and one document, clamping both at zero.
	ApplyDelete(ctx context.Context, tenantID string, bytes uint64) error

	// ApplyReplace swaps oldBytes for newBytes in the storage counter. Growth that would
	// cross the storage limit returns ErrLimitExceeded; shrinking always succeeds.
	ApplyReplace(ctx context.Context, tenantID string, oldBytes, newBytes uint64) error

	// SetUsage overwrites both counters.
	SetUsage(ctx context.Context, tenantID string, usage model.Usage) (*model.TenantQuota, error)

	// SetLimits overwrites the limits and tier.
	SetLimits(ctx context.Context, tenantID string, storageLimit, documentLimit uint64, tier string) (*model.TenantQuota, error)

	// ListTenants returns every tenant that has a quota row.
	ListTenants(ctx context.Context) ([]string, error)
}
