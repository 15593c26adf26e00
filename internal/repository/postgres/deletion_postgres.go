package postgres

import (
	"context"
	"database/sql"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DeletionPostgres tracks scheduled object deletions.
type DeletionPostgres struct {
	db *sql.DB
}

// NewDeletionPostgres creates a new DeletionPostgres repository.
func NewDeletionPostgres(db *sql.DB) *DeletionPostgres {
	return &DeletionPostgres{db: db}
}

var _ repository.DeletionRepository = (*DeletionPostgres)(nil)

const deletionColumns = `id, tenant_id, document_id, path, attempts, last_error, next_attempt_at, created_at, completed_at`

// Schedule inserts a pending deletion.
func (r *DeletionPostgres) Schedule(ctx context.Context, d *model.StorageDeletion) error {
	const q = `
		INSERT INTO storage_deletions (id, tenant_id, document_id, path, attempts, last_error, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, 0, '', $5, $6)
	`
	_, err := r.db.ExecContext(ctx, q, d.ID, d.TenantID, d.DocumentID, d.Path, d.NextAttemptAt, d.CreatedAt)
	return mapError("schedule deletion", err)
}

// Due lists pending deletions ready for an attempt, oldest first.
func (r *DeletionPostgres) Due(ctx context.Context, now time.Time, limit int) ([]model.StorageDeletion, error) {
	const q = `
		SELECT ` + deletionColumns + `
		FROM storage_deletions
		WHERE completed_at IS NULL AND next_attempt_at <= $1
		ORDER BY next_attempt_at, id
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, q, now, limit)
	if err != nil {
		return nil, mapError("due deletions", err)
	}
	defer rows.Close()

	out := make([]model.StorageDeletion, 0)
	for rows.Next() {
		var (
			d         model.StorageDeletion
			completed sql.NullTime
		)
		if err := rows.Scan(
			&d.ID,
			&d.TenantID,
			&d.DocumentID,
			&d.Path,
			&d.Attempts,
			&d.LastError,
			&d.NextAttemptAt,
			&d.CreatedAt,
			&completed,
		); err != nil {
			return nil, mapError("scan deletion", err)
		}
		d.CompletedAt = nullTime(completed)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("due deletions", err)
	}
	return out, nil
}

// MarkDone completes a deletion.
func (r *DeletionPostgres) MarkDone(ctx context.Context, id string, completedAt time.Time) error {
	const q = `UPDATE storage_deletions SET completed_at = $2, attempts = attempts + 1, last_error = '' WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, completedAt)
	if err != nil {
		return mapError("mark deletion done", err)
	}
	return rowsAffected("mark deletion done", res)
}

// MarkFailed records a failed attempt.
func (r *DeletionPostgres) MarkFailed(ctx context.Context, id string, lastError string, nextAttemptAt time.Time) error {
	const q = `UPDATE storage_deletions SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, lastError, nextAttemptAt)
	if err != nil {
		return mapError("mark deletion failed", err)
	}
	return rowsAffected("mark deletion failed", res)
}

// CountPending counts deletions not yet completed.
func (r *DeletionPostgres) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM storage_deletions WHERE completed_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, mapError("count pending deletions", err)
	}
	return n, nil
}
