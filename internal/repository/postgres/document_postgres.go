package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, tenant_id, name, original_filename, current_version_id, status,
		file_size_bytes, content_type, storage_path, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*model.Document, error) {
	var (
		d      model.Document
		status string
		size   int64
	)
	if err := s.Scan(
		&d.ID,
		&d.TenantID,
		&d.Name,
		&d.OriginalFilename,
		&d.CurrentVersionID,
		&status,
		&size,
		&d.ContentType,
		&d.StoragePath,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	d.FileSizeBytes = fromBigint(size)
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.TenantID,
		doc.Name,
		doc.OriginalFilename,
		doc.CurrentVersionID,
		string(doc.Status),
		toBigint(doc.FileSizeBytes),
		doc.ContentType,
		doc.StoragePath,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	out, err := scanDocument(row)
	if err != nil {
		return nil, mapError("create document", err)
	}
	return out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapError("find document", err)
	}
	return d, nil
}

// Update overwrites the mutable columns of a document while its status and version still
// match expect. A miss is told apart from a stale revision with a second lookup.
func (r *DocumentPostgres) Update(ctx context.Context, doc *model.Document, expect repository.Revision) (*model.Document, error) {
	const q = `
		UPDATE documents
		SET name = $2, current_version_id = $3, status = $4, file_size_bytes = $5,
		    content_type = $6, storage_path = $7, updated_at = $8
		WHERE id = $1 AND status = $9 AND current_version_id = $10
		RETURNING ` + documentColumns
	out, err := scanDocument(r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.Name,
		doc.CurrentVersionID,
		string(doc.Status),
		toBigint(doc.FileSizeBytes),
		doc.ContentType,
		doc.StoragePath,
		doc.UpdatedAt,
		string(expect.Status),
		expect.VersionID,
	))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapError("update document", err)
	}

	const qExists = `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, qExists, doc.ID).Scan(&exists); err != nil {
		return nil, mapError("update document", err)
	}
	if !exists {
		return nil, fmt.Errorf("update document: %w", repository.ErrNotFound)
	}
	return nil, fmt.Errorf("update document: %w", repository.ErrStale)
}

// List returns a tenant's documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, tenantID string, status model.DocumentStatus, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	// Count total rows
	const qCount = `SELECT COUNT(*) FROM documents WHERE tenant_id = $1 AND status = $2`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, tenantID, string(status)).Scan(&total); err != nil {
		return nil, mapError("count documents", err)
	}

	// Fetch page
	const qList = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, qList, tenantID, string(status), pq.Limit, pq.Offset)
	if err != nil {
		return nil, mapError("list documents", err)
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, mapError("scan document", err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list documents", err)
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// ActiveUsage is the authoritative usage the quota ledger reconciles against.
func (r *DocumentPostgres) ActiveUsage(ctx context.Context, tenantID string) (model.Usage, error) {
	const q = `
		SELECT COALESCE(SUM(file_size_bytes), 0)::BIGINT, COUNT(*)
		FROM documents
		WHERE tenant_id = $1 AND status = 'active'
	`
	var bytes, count int64
	if err := r.db.QueryRowContext(ctx, q, tenantID).Scan(&bytes, &count); err != nil {
		return model.Usage{}, mapError("active usage", err)
	}
	return model.Usage{StorageBytes: fromBigint(bytes), DocumentCount: fromBigint(count)}, nil
}
