package migration

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/logging"
)

func expectStep(mock sqlmock.Sqlmock, step migrationStep) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(step.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(recordApplied)).WithArgs(step.Name).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestEnsureMigrated(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh database applies every step", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(createLedger)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(selectApplied)).WillReturnRows(sqlmock.NewRows([]string{"name"}))
		for _, step := range steps {
			expectStep(mock, step)
		}

		var buf bytes.Buffer
		n, err := EnsureMigrated(ctx, db, logging.NewWithWriter(&buf, "info"), "db.local")
		require.NoError(t, err)
		assert.Equal(t, len(steps), n)
		assert.Contains(t, buf.String(), `"event":"db_migration_success"`)
		assert.Contains(t, buf.String(), `"db_host":"db.local"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("applied steps are skipped", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows([]string{"name"})
		for _, step := range steps[:len(steps)-1] {
			rows.AddRow(step.Name)
		}
		mock.ExpectExec(regexp.QuoteMeta(createLedger)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(selectApplied)).WillReturnRows(rows)
		expectStep(mock, steps[len(steps)-1])

		n, err := EnsureMigrated(ctx, db, logging.Nop(), "db.local")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("up to date database is a no-op", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows([]string{"name"})
		for _, step := range steps {
			rows.AddRow(step.Name)
		}
		mock.ExpectExec(regexp.QuoteMeta(createLedger)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(selectApplied)).WillReturnRows(rows)

		var buf bytes.Buffer
		n, err := EnsureMigrated(ctx, db, logging.NewWithWriter(&buf, "info"), "db.local")
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Contains(t, buf.String(), `"event":"db_migration_skip"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed step rolls back and stops", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(createLedger)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(selectApplied)).WillReturnRows(sqlmock.NewRows([]string{"name"}))
		expectStep(mock, steps[0])
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(steps[1].SQL)).WillReturnError(errors.New("permission denied"))
		mock.ExpectRollback()

		var buf bytes.Buffer
		n, err := EnsureMigrated(ctx, db, logging.NewWithWriter(&buf, "info"), "db.local")
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Contains(t, err.Error(), steps[1].Name)
		assert.Contains(t, buf.String(), `"level":"error"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ledger creation failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(createLedger)).WillReturnError(errors.New("read-only transaction"))

		_, err = EnsureMigrated(ctx, db, logging.Nop(), "db.local")
		assert.ErrorContains(t, err, "failed to create migration ledger")
	})
}

func TestStepNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range steps {
		assert.False(t, seen[s.Name], "duplicate step %s", s.Name)
		seen[s.Name] = true
	}
}
