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

var quotaCols = []string{"tenant_id", "storage_limit_bytes", "storage_used_bytes", "document_limit", "document_count", "tier", "updated_at"}

func quotaRow(used, count int64) *sqlmock.Rows {
	return sqlmock.NewRows(quotaCols).AddRow("tenant-1", int64(1<<30), used, int64(200), count, "free", time.Now())
}

func TestQuotaPostgres_GetOrCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuotaPostgres(db)

	mock.ExpectExec("INSERT INTO tenant_quotas (.+) ON CONFLICT \\(tenant_id\\) DO NOTHING").
		WithArgs("tenant-1", int64(1<<30), int64(200), "free").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM tenant_quotas WHERE tenant_id = \\$1").
		WithArgs("tenant-1").
		WillReturnRows(quotaRow(0, 0))

	q, err := repo.GetOrCreate(context.Background(), model.TenantQuota{
		TenantID: "tenant-1", StorageLimitBytes: 1 << 30, DocumentLimit: 200, Tier: "free",
	})

	require.NoError(t, err)
	assert.Equal(t, uint64(1<<30), q.StorageLimitBytes)
	assert.Equal(t, uint64(0), q.StorageUsedBytes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaPostgres_Reserve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuotaPostgres(db)
	ctx := context.Background()

	t.Run("within limits", func(t *testing.T) {
		mock.ExpectQuery("UPDATE tenant_quotas SET storage_used_bytes = storage_used_bytes \\+ \\$2(.+)AND storage_used_bytes \\+ \\$2 <= storage_limit_bytes").
			WithArgs("tenant-1", int64(600)).
			WillReturnRows(quotaRow(600, 1))

		q, err := repo.Reserve(ctx, "tenant-1", 600)

		require.NoError(t, err)
		assert.Equal(t, uint64(600), q.StorageUsedBytes)
		assert.Equal(t, uint64(1), q.DocumentCount)
	})

	t.Run("limit exceeded", func(t *testing.T) {
		mock.ExpectQuery("UPDATE tenant_quotas").
			WithArgs("tenant-1", int64(1<<31)).
			WillReturnError(sql.ErrNoRows)

		q, err := repo.Reserve(ctx, "tenant-1", 1<<31)

		assert.Nil(t, q)
		assert.ErrorIs(t, err, repository.ErrLimitExceeded)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaPostgres_ApplyDeleteClamps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuotaPostgres(db)

	mock.ExpectExec("SET storage_used_bytes = GREATEST\\(storage_used_bytes - \\$2, 0\\),\\s+document_count\\s+= GREATEST\\(document_count - 1, 0\\)").
		WithArgs("tenant-1", int64(50)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.ApplyDelete(context.Background(), "tenant-1", 50))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaPostgres_ApplyUploadMissingTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuotaPostgres(db)

	mock.ExpectExec("UPDATE tenant_quotas").
		WithArgs("ghost", int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.ApplyUpload(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestQuotaPostgres_ApplyReplace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuotaPostgres(db)
	ctx := context.Background()

	t.Run("applied", func(t *testing.T) {
		// Both sizes are typed so Postgres never infers text from the parameter-only comparison.
		mock.ExpectExec("SET storage_used_bytes = GREATEST\\(storage_used_bytes - \\$2::BIGINT, 0\\) \\+ \\$3::BIGINT(.+)" +
			"AND \\(\\$3::BIGINT <= \\$2::BIGINT OR").
			WithArgs("tenant-1", int64(100), int64(300)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.ApplyReplace(ctx, "tenant-1", 100, 300))
	})

	t.Run("growth over limit", func(t *testing.T) {
		mock.ExpectExec("UPDATE tenant_quotas").
			WithArgs("tenant-1", int64(100), int64(1<<31)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM tenant_quotas").
			WithArgs("tenant-1").
			WillReturnRows(quotaRow(100, 1))

		err := repo.ApplyReplace(ctx, "tenant-1", 100, 1<<31)
		assert.ErrorIs(t, err, repository.ErrLimitExceeded)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaPostgres_SetUsageAndTenants(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuotaPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("UPDATE tenant_quotas SET storage_used_bytes = \\$2, document_count = \\$3").
		WithArgs("tenant-1", int64(700), int64(2)).
		WillReturnRows(quotaRow(700, 2))
	mock.ExpectQuery("SELECT tenant_id FROM tenant_quotas ORDER BY tenant_id").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow("tenant-1").AddRow("tenant-2"))

	q, err := repo.SetUsage(ctx, "tenant-1", model.Usage{StorageBytes: 700, DocumentCount: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(700), q.StorageUsedBytes)

	tenants, err := repo.ListTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-1", "tenant-2"}, tenants)
	assert.NoError(t, mock.ExpectationsWereMet())
}
