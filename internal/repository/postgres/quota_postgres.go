package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// QuotaPostgres is a PostgreSQL implementation of repository.QuotaRepository.
// Counter adjustments are single UPDATE statements; no read-modify-write happens in Go.
type QuotaPostgres struct {
	db *sql.DB
}

// NewQuotaPostgres creates a new QuotaPostgres repository.
func NewQuotaPostgres(db *sql.DB) *QuotaPostgres {
	return &QuotaPostgres{db: db}
}

var _ repository.QuotaRepository = (*QuotaPostgres)(nil)

const quotaColumns = `tenant_id, storage_limit_bytes, storage_used_bytes, document_limit, document_count, tier, updated_at`

func scanQuota(s scanner) (*model.TenantQuota, error) {
	var (
		q                            model.TenantQuota
		storageLimit, storageUsed    int64
		documentLimit, documentCount int64
	)
	if err := s.Scan(
		&q.TenantID,
		&storageLimit,
		&storageUsed,
		&documentLimit,
		&documentCount,
		&q.Tier,
		&q.UpdatedAt,
	); err != nil {
		return nil, err
	}
	q.StorageLimitBytes = fromBigint(storageLimit)
	q.StorageUsedBytes = fromBigint(storageUsed)
	q.DocumentLimit = fromBigint(documentLimit)
	q.DocumentCount = fromBigint(documentCount)
	return &q, nil
}

// GetOrCreate inserts the default row if missing and returns the stored one.
func (r *QuotaPostgres) GetOrCreate(ctx context.Context, q model.TenantQuota) (*model.TenantQuota, error) {
	const qInsert = `
		INSERT INTO tenant_quotas (` + quotaColumns + `)
		VALUES ($1, $2, 0, $3, 0, $4, NOW())
		ON CONFLICT (tenant_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, qInsert,
		q.TenantID,
		toBigint(q.StorageLimitBytes),
		toBigint(q.DocumentLimit),
		q.Tier,
	); err != nil {
		return nil, mapError("create quota", err)
	}
	return r.Get(ctx, q.TenantID)
}

// Get returns the quota row of a tenant.
func (r *QuotaPostgres) Get(ctx context.Context, tenantID string) (*model.TenantQuota, error) {
	const q = `SELECT ` + quotaColumns + ` FROM tenant_quotas WHERE tenant_id = $1`
	out, err := scanQuota(r.db.QueryRowContext(ctx, q, tenantID))
	if err != nil {
		return nil, mapError("get quota", err)
	}
	return out, nil
}

// Reserve is the conditional check-and-increment used by uploads.
func (r *QuotaPostgres) Reserve(ctx context.Context, tenantID string, bytes uint64) (*model.TenantQuota, error) {
	const q = `
		UPDATE tenant_quotas
		SET storage_used_bytes = storage_used_bytes + $2,
		    document_count     = document_count + 1,
		    updated_at         = NOW()
		WHERE tenant_id = $1
		  AND storage_used_bytes + $2 <= storage_limit_bytes
		  AND document_count + 1 <= document_limit
		RETURNING ` + quotaColumns
	out, err := scanQuota(r.db.QueryRowContext(ctx, q, tenantID, toBigint(bytes)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reserve quota: %w", repository.ErrLimitExceeded)
	}
	if err != nil {
		return nil, mapError("reserve quota", err)
	}
	return out, nil
}

// ApplyUpload increments both counters in one statement.
func (r *QuotaPostgres) ApplyUpload(ctx context.Context, tenantID string, bytes uint64) error {
	const q = `
		UPDATE tenant_quotas
		SET storage_used_bytes = storage_used_bytes + $2,
		    document_count     = document_count + 1,
		    updated_at         = NOW()
		WHERE tenant_id = $1
	`
	res, err := r.db.ExecContext(ctx, q, tenantID, toBigint(bytes))
	if err != nil {
		return mapError("apply upload", err)
	}
	return rowsAffected("apply upload", res)
}

// ApplyDelete decrements both counters, clamped at zero.
func (r *QuotaPostgres) ApplyDelete(ctx context.Context, tenantID string, bytes uint64) error {
	const q = `
		UPDATE tenant_quotas
		SET storage_used_bytes = GREATEST(storage_used_bytes - $2, 0),
		    document_count     = GREATEST(document_count - 1, 0),
		    updated_at         = NOW()
		WHERE tenant_id = $1
	`
	res, err := r.db.ExecContext(ctx, q, tenantID, toBigint(bytes))
	if err != nil {
		return mapError("apply delete", err)
	}
	return rowsAffected("apply delete", res)
}

// ApplyReplace swaps the size of a replaced version for the new one.
func (r *QuotaPostgres) ApplyReplace(ctx context.Context, tenantID string, oldBytes, newBytes uint64) error {
	const q = `
		UPDATE tenant_quotas
		SET storage_used_bytes = GREATEST(storage_used_bytes - $2::BIGINT, 0) + $3::BIGINT,
		    updated_at         = NOW()
		WHERE tenant_id = $1
		  AND ($3::BIGINT <= $2::BIGINT OR GREATEST(storage_used_bytes - $2::BIGINT, 0) + $3::BIGINT <= storage_limit_bytes)
	`
	res, err := r.db.ExecContext(ctx, q, tenantID, toBigint(oldBytes), toBigint(newBytes))
	if err != nil {
		return mapError("apply replace", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("apply replace", err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, tenantID); err != nil {
			return err
		}
		return fmt.Errorf("apply replace: %w", repository.ErrLimitExceeded)
	}
	return nil
}

// SetUsage overwrites both counters with reconciled values.
func (r *QuotaPostgres) SetUsage(ctx context.Context, tenantID string, usage model.Usage) (*model.TenantQuota, error) {
	const q = `
		UPDATE tenant_quotas
		SET storage_used_bytes = $2, document_count = $3, updated_at = NOW()
		WHERE tenant_id = $1
		RETURNING ` + quotaColumns
	out, err := scanQuota(r.db.QueryRowContext(ctx, q, tenantID, toBigint(usage.StorageBytes), toBigint(usage.DocumentCount)))
	if err != nil {
		return nil, mapError("set usage", err)
	}
	return out, nil
}

// SetLimits overwrites limits and tier.
func (r *QuotaPostgres) SetLimits(ctx context.Context, tenantID string, storageLimit, documentLimit uint64, tier string) (*model.TenantQuota, error) {
	const q = `
		UPDATE tenant_quotas
		SET storage_limit_bytes = $2, document_limit = $3, tier = $4, updated_at = NOW()
		WHERE tenant_id = $1
		RETURNING ` + quotaColumns
	out, err := scanQuota(r.db.QueryRowContext(ctx, q, tenantID, toBigint(storageLimit), toBigint(documentLimit), tier))
	if err != nil {
		return nil, mapError("set limits", err)
	}
	return out, nil
}

// ListTenants returns all tenants with a quota row.
func (r *QuotaPostgres) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tenant_id FROM tenant_quotas ORDER BY tenant_id`)
	if err != nil {
		return nil, mapError("list tenants", err)
	}
	defer rows.Close()

	tenants := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, mapError("scan tenant", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list tenants", err)
	}
	return tenants, nil
}
