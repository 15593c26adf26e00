package repository

import (
	"context"
	"time"

	"docvault/internal/model"
)

// JobRepository is the durable reindex queue.
type JobRepository interface {
	// Enqueue inserts a pending job.
	Enqueue(ctx context.Context, job *model.ReindexJob) (*model.ReindexJob, error)

	// Claim moves the oldest available pending job to processing, increments its attempts
	// and returns it. Returns ErrNotFound when nothing is available.
	Claim(ctx context.Context, now time.Time) (*model.ReindexJob, error)

	// Complete marks a processing job completed.
	Complete(ctx context.Context, id string, completedAt time.Time, slaViolated bool) error

	// Fail records a failed attempt. status is JobFailed or JobDead; failed jobs become
	// available again at availableAt.
	Fail(ctx context.Context, id string, status model.JobStatus, lastError string, availableAt time.Time) error

	// RequeueFailed moves failed jobs whose availableAt has passed back to pending.
	RequeueFailed(ctx context.Context, now time.Time) (int, error)

	// ReleaseStale recovers processing jobs started before the cutoff. Jobs that already
	// used maxAttempts claims become dead, the rest return to pending.
	ReleaseStale(ctx context.Context, startedBefore time.Time, maxAttempts int) (released, dead int, err error)

	// PurgeCompleted deletes completed jobs finished before the cutoff.
	PurgeCompleted(ctx context.Context, completedBefore time.Time) (int, error)

	// Stats counts jobs per status.
	Stats(ctx context.Context) (model.QueueStats, error)

	// FindByID returns a job by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.ReindexJob, error)
}

// DeletionRepository tracks object deletions scheduled by document deletes.
type DeletionRepository interface {
	// Schedule records a pending deletion.
	Schedule(ctx context.Context, d *model.StorageDeletion) error

	// Due returns up to limit pending deletions whose next attempt is at or before now.
	Due(ctx context.Context, now time.Time, limit int) ([]model.StorageDeletion, error)

	// MarkDone completes a deletion.
	MarkDone(ctx context.Context, id string, completedAt time.Time) error

	// MarkFailed increments attempts and schedules the next attempt.
	MarkFailed(ctx context.Context, id string, lastError string, nextAttemptAt time.Time) error

	// CountPending returns the number of deletions not yet completed.
	CountPending(ctx context.Context) (int, error)
}
