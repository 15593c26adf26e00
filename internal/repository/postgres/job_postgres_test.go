package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var jobCols = []string{"id", "document_id", "tenant_id", "version_id", "correlation_id", "op", "status", "attempts",
	"last_error", "sla_violated", "enqueued_at", "available_at", "started_at", "completed_at"}

func TestJobPostgres_Enqueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewJobPostgres(db)
	now := time.Now().UTC()
	job := &model.ReindexJob{ID: "job-1", DocumentID: "doc-1", TenantID: "tenant-1", VersionID: "v-1",
		CorrelationID: "corr-1", Op: model.JobOpUpsert, EnqueuedAt: now}

	mock.ExpectQuery("INSERT INTO reindex_jobs").
		WithArgs("job-1", "doc-1", "tenant-1", "v-1", "corr-1", "upsert", now).
		WillReturnRows(sqlmock.NewRows(jobCols).
			AddRow("job-1", "doc-1", "tenant-1", "v-1", "corr-1", "upsert", "pending", 0, "", false, now, now, nil, nil))

	out, err := repo.Enqueue(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, model.JobPending, out.Status)
	assert.Nil(t, out.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_Claim(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("claims oldest pending", func(t *testing.T) {
		mock.ExpectQuery("UPDATE reindex_jobs SET status = 'processing', attempts = attempts \\+ 1(.+)FOR UPDATE SKIP LOCKED").
			WithArgs(now).
			WillReturnRows(sqlmock.NewRows(jobCols).
				AddRow("job-1", "doc-1", "tenant-1", "v-1", "corr-1", "upsert", "processing", 1, "", false, now, now, now, nil))

		job, err := repo.Claim(ctx, now)

		require.NoError(t, err)
		assert.Equal(t, model.JobProcessing, job.Status)
		assert.Equal(t, 1, job.Attempts)
		require.NotNil(t, job.StartedAt)
	})

	t.Run("empty queue", func(t *testing.T) {
		mock.ExpectQuery("UPDATE reindex_jobs").
			WithArgs(now).
			WillReturnError(sql.ErrNoRows)

		job, err := repo.Claim(ctx, now)

		assert.Nil(t, job)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_Transitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE reindex_jobs SET status = 'completed'").
		WithArgs("job-1", now, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reindex_jobs SET status = \\$2, last_error = \\$3").
		WithArgs("job-2", "dead", "boom", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reindex_jobs SET status = 'pending' WHERE status = 'failed'").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM reindex_jobs WHERE status = 'completed'").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec("UPDATE reindex_jobs SET status = 'completed'").
		WithArgs("gone", now, false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Complete(ctx, "job-1", now, true))
	require.NoError(t, repo.Fail(ctx, "job-2", model.JobDead, "boom", now))

	n, err := repo.RequeueFailed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.PurgeCompleted(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	assert.ErrorIs(t, repo.Complete(ctx, "gone", now, false), repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_ReleaseStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewJobPostgres(db)
	cutoff := time.Now().UTC()

	mock.ExpectQuery("UPDATE reindex_jobs SET status = CASE WHEN attempts >= \\$2 THEN 'dead' ELSE 'pending' END(.+)" +
		"WHERE status = 'processing' AND started_at < \\$1 RETURNING status").
		WithArgs(cutoff, 5).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending").AddRow("dead").AddRow("pending"))

	released, dead, err := repo.ReleaseStale(context.Background(), cutoff, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, released)
	assert.Equal(t, 1, dead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewJobPostgres(db)

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) FROM reindex_jobs GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 4).
			AddRow("processing", 1).
			AddRow("completed", 9).
			AddRow("dead", 2))

	st, err := repo.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, model.QueueStats{Pending: 4, Processing: 1, Completed: 9, Dead: 2}, st)
	assert.Equal(t, 5, st.Depth())
	assert.NoError(t, mock.ExpectationsWereMet())
}
