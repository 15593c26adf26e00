package postgres

import (
	"context"
	"database/sql"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// JobPostgres is the Postgres-backed reindex queue. Claims use FOR UPDATE SKIP LOCKED
// so any number of worker processes can share the table.
type JobPostgres struct {
	db *sql.DB
}

// NewJobPostgres creates a new JobPostgres repository.
func NewJobPostgres(db *sql.DB) *JobPostgres {
	return &JobPostgres{db: db}
}

var _ repository.JobRepository = (*JobPostgres)(nil)

const jobColumns = `id, document_id, tenant_id, version_id, correlation_id, op, status, attempts,
		last_error, sla_violated, enqueued_at, available_at, started_at, completed_at`

func scanJob(s scanner) (*model.ReindexJob, error) {
	var (
		j                      model.ReindexJob
		op, status             string
		startedAt, completedAt sql.NullTime
	)
	if err := s.Scan(
		&j.ID,
		&j.DocumentID,
		&j.TenantID,
		&j.VersionID,
		&j.CorrelationID,
		&op,
		&status,
		&j.Attempts,
		&j.LastError,
		&j.SLAViolated,
		&j.EnqueuedAt,
		&j.AvailableAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	j.Op = model.JobOp(op)
	j.Status = model.JobStatus(status)
	j.StartedAt = nullTime(startedAt)
	j.CompletedAt = nullTime(completedAt)
	return &j, nil
}

// Enqueue inserts a pending job.
func (r *JobPostgres) Enqueue(ctx context.Context, job *model.ReindexJob) (*model.ReindexJob, error) {
	const q = `
		INSERT INTO reindex_jobs (id, document_id, tenant_id, version_id, correlation_id, op, status,
		                          attempts, last_error, sla_violated, enqueued_at, available_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, '', FALSE, $7, $7)
		RETURNING ` + jobColumns
	out, err := scanJob(r.db.QueryRowContext(ctx, q,
		job.ID,
		job.DocumentID,
		job.TenantID,
		job.VersionID,
		job.CorrelationID,
		string(job.Op),
		job.EnqueuedAt,
	))
	if err != nil {
		return nil, mapError("enqueue job", err)
	}
	return out, nil
}

// Claim takes the oldest available pending job.
func (r *JobPostgres) Claim(ctx context.Context, now time.Time) (*model.ReindexJob, error) {
	const q = `
		UPDATE reindex_jobs
		SET status = 'processing', attempts = attempts + 1, started_at = $1
		WHERE id = (
			SELECT id FROM reindex_jobs
			WHERE status = 'pending' AND available_at <= $1
			ORDER BY enqueued_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	out, err := scanJob(r.db.QueryRowContext(ctx, q, now))
	if err != nil {
		return nil, mapError("claim job", err)
	}
	return out, nil
}

// Complete marks a job completed.
func (r *JobPostgres) Complete(ctx context.Context, id string, completedAt time.Time, slaViolated bool) error {
	const q = `
		UPDATE reindex_jobs
		SET status = 'completed', completed_at = $2, sla_violated = $3, last_error = ''
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q, id, completedAt, slaViolated)
	if err != nil {
		return mapError("complete job", err)
	}
	return rowsAffected("complete job", res)
}

// Fail records a failed attempt.
func (r *JobPostgres) Fail(ctx context.Context, id string, status model.JobStatus, lastError string, availableAt time.Time) error {
	const q = `
		UPDATE reindex_jobs
		SET status = $2, last_error = $3, available_at = $4
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q, id, string(status), lastError, availableAt)
	if err != nil {
		return mapError("fail job", err)
	}
	return rowsAffected("fail job", res)
}

// RequeueFailed returns failed jobs past their retry delay to pending.
func (r *JobPostgres) RequeueFailed(ctx context.Context, now time.Time) (int, error) {
	const q = `UPDATE reindex_jobs SET status = 'pending' WHERE status = 'failed' AND available_at <= $1`
	return r.execCount(ctx, "requeue failed jobs", q, now)
}

// ReleaseStale returns abandoned processing jobs to pending, or buries them once their
// claims are used up.
func (r *JobPostgres) ReleaseStale(ctx context.Context, startedBefore time.Time, maxAttempts int) (released, dead int, err error) {
	const q = `
		UPDATE reindex_jobs
		SET status       = CASE WHEN attempts >= $2 THEN 'dead' ELSE 'pending' END,
		    last_error   = CASE WHEN attempts >= $2 THEN 'processing timed out' ELSE last_error END,
		    available_at = $1
		WHERE status = 'processing' AND started_at < $1
		RETURNING status
	`
	rows, err := r.db.QueryContext(ctx, q, startedBefore, maxAttempts)
	if err != nil {
		return 0, 0, mapError("release stale jobs", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return 0, 0, mapError("release stale jobs", err)
		}
		if model.JobStatus(status) == model.JobDead {
			dead++
		} else {
			released++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, mapError("release stale jobs", err)
	}
	return released, dead, nil
}

// PurgeCompleted garbage-collects completed jobs.
func (r *JobPostgres) PurgeCompleted(ctx context.Context, completedBefore time.Time) (int, error) {
	const q = `DELETE FROM reindex_jobs WHERE status = 'completed' AND completed_at < $1`
	return r.execCount(ctx, "purge completed jobs", q, completedBefore)
}

// Stats counts jobs per status.
func (r *JobPostgres) Stats(ctx context.Context) (model.QueueStats, error) {
	const q = `SELECT status, COUNT(*) FROM reindex_jobs GROUP BY status`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return model.QueueStats{}, mapError("queue stats", err)
	}
	defer rows.Close()

	var st model.QueueStats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return model.QueueStats{}, mapError("scan queue stats", err)
		}
		switch model.JobStatus(status) {
		case model.JobPending:
			st.Pending = n
		case model.JobProcessing:
			st.Processing = n
		case model.JobCompleted:
			st.Completed = n
		case model.JobFailed:
			st.Failed = n
		case model.JobDead:
			st.Dead = n
		}
	}
	if err := rows.Err(); err != nil {
		return model.QueueStats{}, mapError("queue stats", err)
	}
	return st, nil
}

// FindByID fetches a job.
func (r *JobPostgres) FindByID(ctx context.Context, id string) (*model.ReindexJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM reindex_jobs WHERE id = $1`
	out, err := scanJob(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapError("find job", err)
	}
	return out, nil
}

func (r *JobPostgres) execCount(ctx context.Context, op, q string, args ...any) (int, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(op, err)
	}
	return int(n), nil
}
