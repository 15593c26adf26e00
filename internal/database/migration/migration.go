package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type migrationStep struct {
	Name string
	SQL  string
}

// steps are applied in order, each at most once. Append only; never edit an applied step.
var steps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id                 UUID        PRIMARY KEY,
  tenant_id          TEXT        NOT NULL,
  name               TEXT        NOT NULL,
  original_filename  TEXT        NOT NULL,
  current_version_id TEXT        NOT NULL,
  status             TEXT        NOT NULL CHECK (status IN ('active', 'trashed', 'deleted')),
  file_size_bytes    BIGINT      NOT NULL CHECK (file_size_bytes >= 0),
  content_type       TEXT        NOT NULL,
  storage_path       TEXT        NOT NULL UNIQUE,
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_tenant_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_tenant_status ON documents (tenant_id, status, created_at DESC);`,
	},
	{
		Name: "create_table_tenant_quotas",
		SQL: `CREATE TABLE IF NOT EXISTS tenant_quotas (
  tenant_id           TEXT        PRIMARY KEY,
  storage_limit_bytes BIGINT      NOT NULL CHECK (storage_limit_bytes >= 0),
  storage_used_bytes  BIGINT      NOT NULL DEFAULT 0 CHECK (storage_used_bytes >= 0),
  document_limit      BIGINT      NOT NULL CHECK (document_limit >= 0),
  document_count      BIGINT      NOT NULL DEFAULT 0 CHECK (document_count >= 0),
  tier                TEXT        NOT NULL,
  updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_reindex_jobs",
		SQL: `CREATE TABLE IF NOT EXISTS reindex_jobs (
  id             UUID        PRIMARY KEY,
  document_id    TEXT        NOT NULL,
  tenant_id      TEXT        NOT NULL,
  version_id     TEXT        NOT NULL,
  correlation_id TEXT        NOT NULL,
  op             TEXT        NOT NULL CHECK (op IN ('upsert', 'remove')),
  status         TEXT        NOT NULL,
  attempts       INTEGER     NOT NULL DEFAULT 0,
  last_error     TEXT        NOT NULL DEFAULT '',
  sla_violated   BOOLEAN     NOT NULL DEFAULT false,
  enqueued_at    TIMESTAMPTZ NOT NULL,
  available_at   TIMESTAMPTZ NOT NULL,
  started_at     TIMESTAMPTZ,
  completed_at   TIMESTAMPTZ
);`,
	},
	{
		Name: "create_index_reindex_jobs_claim",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_reindex_jobs_claim ON reindex_jobs (status, available_at, enqueued_at);`,
	},
	{
		Name: "create_index_reindex_jobs_completed",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_reindex_jobs_completed ON reindex_jobs (completed_at) WHERE status = 'completed';`,
	},
	{
		Name: "create_table_storage_deletions",
		SQL: `CREATE TABLE IF NOT EXISTS storage_deletions (
  id              UUID        PRIMARY KEY,
  tenant_id       TEXT        NOT NULL,
  document_id     TEXT        NOT NULL,
  path            TEXT        NOT NULL,
  attempts        INTEGER     NOT NULL DEFAULT 0,
  last_error      TEXT        NOT NULL DEFAULT '',
  next_attempt_at TIMESTAMPTZ NOT NULL,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  completed_at    TIMESTAMPTZ
);`,
	},
	{
		Name: "create_index_storage_deletions_due",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_storage_deletions_due ON storage_deletions (next_attempt_at) WHERE completed_at IS NULL;`,
	},
}

const (
	createLedger = `CREATE TABLE IF NOT EXISTS schema_migrations (
  name       TEXT        PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
	selectApplied = `SELECT name FROM schema_migrations`
	recordApplied = `INSERT INTO schema_migrations (name) VALUES ($1)`
)

// EnsureMigrated applies every step not yet recorded in schema_migrations. Each step runs
// in its own transaction together with its ledger row, so a failed step can be retried.
// It returns the number of steps applied.
func EnsureMigrated(ctx context.Context, db *sql.DB, log zerolog.Logger, dbHost string) (int, error) {
	start := time.Now()
	log = log.With().Str("component", "database").Str("db_host", dbHost).Logger()

	log.Info().Str("event", "db_migration_check").Str("status", "starting").Send()

	if _, err := db.ExecContext(ctx, createLedger); err != nil {
		log.Error().Str("event", "db_migration_failed").Str("status", "error").
			Str("error_message", fmt.Sprintf("failed to create migration ledger: %v", err)).
			Int64("duration_ms", time.Since(start).Milliseconds()).Send()
		return 0, fmt.Errorf("failed to create migration ledger: %w", err)
	}

	applied, err := appliedSteps(ctx, db)
	if err != nil {
		log.Error().Str("event", "db_migration_failed").Str("status", "error").
			Str("error_message", err.Error()).
			Int64("duration_ms", time.Since(start).Milliseconds()).Send()
		return 0, err
	}

	count := 0
	for _, step := range steps {
		if applied[step.Name] {
			continue
		}
		stepStart := time.Now()
		if err := apply(ctx, db, step); err != nil {
			log.Error().Str("event", "db_migration_failed").Str("status", "error").
				Str("migration_step", step.Name).
				Str("error_message", err.Error()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).Send()
			return count, fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		count++
		log.Info().Str("event", "db_migration_step").Str("status", "success").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).Send()
	}

	event := "db_migration_success"
	if count == 0 {
		event = "db_migration_skip"
	}
	log.Info().Str("event", event).Str("status", "success").
		Int("steps_applied", count).
		Int64("duration_ms", time.Since(start).Milliseconds()).Send()
	return count, nil
}

func appliedSteps(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, selectApplied)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration ledger: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to read migration ledger: %w", err)
		}
		out[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read migration ledger: %w", err)
	}
	return out, nil
}

func apply(ctx context.Context, db *sql.DB, step migrationStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, recordApplied, step.Name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
