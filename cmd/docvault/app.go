package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/logging"
	"docvault/internal/metrics"
	"docvault/internal/purge"
	"docvault/internal/quota"
	"docvault/internal/reindex"
	"docvault/internal/repository"
	"docvault/internal/repository/memory"
	"docvault/internal/repository/postgres"
	"docvault/internal/search"
	"docvault/internal/service"
	"docvault/internal/storage"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg      *config.AppConfig
	log      zerolog.Logger
	db       *sql.DB
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store   *storage.ObjectStore
	objects *storage.MemoryBackend // set only for the memory driver
	ledger  *quota.Ledger
	queue   *reindex.Queue
	worker  *reindex.Worker
	purger  *purge.Purger
	docs    service.DocumentService
}

type repositories struct {
	documents repository.DocumentRepository
	quotas    repository.QuotaRepository
	jobs      repository.JobRepository
	deletions repository.DeletionRepository
}

// newApp connects to the database (unless ephemeral) and the object store and builds
// every component. Ephemeral apps keep all state in process memory.
func newApp(ctx context.Context, cfg *config.AppConfig, ephemeral bool) (*app, error) {
	log := logging.New(cfg.Log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	a := &app{cfg: cfg, log: log, registry: registry, metrics: m}

	var repos repositories
	if ephemeral {
		cfg.Storage.Driver = "memory"
		if cfg.Storage.SigningSecret == "" {
			cfg.Storage.SigningSecret = uuid.NewString()
		}
		repos = repositories{
			documents: memory.NewDocumentMemory(),
			quotas:    memory.NewQuotaMemory(),
			jobs:      memory.NewJobMemory(),
			deletions: memory.NewDeletionMemory(),
		}
		log.Warn().Str("event", "ephemeral_mode").Msg("state is kept in memory and lost on exit")
	} else {
		db, err := database.NewPostgres(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db
		repos = repositories{
			documents: postgres.NewDocumentPostgres(db),
			quotas:    postgres.NewQuotaPostgres(db),
			jobs:      postgres.NewJobPostgres(db),
			deletions: postgres.NewDeletionPostgres(db),
		}
	}

	backend, objects, err := newBackend(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	a.objects = objects
	a.store = storage.NewObjectStore(backend, storage.Options{
		Retry: storage.RetryPolicy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
		},
		UploadTTL:   cfg.Grants.UploadTTL,
		DownloadTTL: cfg.Grants.DownloadTTL,
		Metrics:     m,
		Logger:      log,
	})

	a.ledger = quota.NewLedger(repos.quotas, repos.documents, cfg.Quota, m, log)
	a.queue = reindex.NewQueue(repos.jobs, reindex.Options{Config: cfg.Queue, Metrics: m, Logger: log})
	indexer := reindex.NewIndexer(repos.documents, search.NewArtifactIndex(a.store), log)
	a.worker = reindex.NewWorker(a.queue, indexer, log)
	a.purger = purge.New(repos.deletions, a.store, cfg.Purge, m, log, nil)

	a.docs = service.NewDocumentService(service.Deps{
		Documents: repos.documents,
		Ledger:    a.ledger,
		Store:     a.store,
		Queue:     a.queue,
		Deletions: a.purger,
		Logger:    log,
	})
	return a, nil
}

// newBackend selects the storage driver. The memory backend is also returned on its own
// so the HTTP layer can serve the grants it signs.
func newBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, *storage.MemoryBackend, error) {
	switch cfg.Driver {
	case "minio":
		b, err := storage.NewMinIO(ctx, cfg)
		return b, nil, err
	case "s3":
		b, err := storage.NewS3(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	case "memory":
		if cfg.SigningSecret == "" {
			return nil, nil, fmt.Errorf("memory driver requires STORAGE_SIGNING_SECRET")
		}
		m := storage.NewMemory(storage.NewSigner([]byte(cfg.SigningSecret), cfg.PublicBaseURL, nil))
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Close releases the database pool.
func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
