// Package purge reclaims object storage after documents are deleted.
//
// Deleting a document marks its metadata deleted immediately, so it disappears from
// listings and search at once. Removing the bytes is scheduled here and retried until it
// succeeds: reclamation lags metadata deletion by at most the poll interval plus the
// backoff of any failed attempts. Deletions that keep failing past the alert threshold
// are logged at error level on every further attempt and remain visible through the
// pending deletions gauge.
package purge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docvault/internal/config"
	"docvault/internal/metrics"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

// Deleter removes objects. Deleting an absent object must succeed or return storage.ErrNotFound.
type Deleter interface {
	Delete(ctx context.Context, path string) error
}

// Purger schedules and executes storage deletions.
type Purger struct {
	deletions repository.DeletionRepository
	store     Deleter
	cfg       config.PurgeConfig
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

// New creates a purger. A nil clock uses time.Now.
func New(deletions repository.DeletionRepository, store Deleter, cfg config.PurgeConfig, m *metrics.Metrics, log zerolog.Logger, clock func() time.Time) *Purger {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 5 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.AlertAttempts <= 0 {
		cfg.AlertAttempts = 10
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if clock == nil {
		clock = time.Now
	}
	return &Purger{
		deletions: deletions,
		store:     store,
		cfg:       cfg,
		metrics:   m,
		log:       log.With().Str("component", "purger").Logger(),
		now:       clock,
	}
}

// Schedule records that the object at path must be removed. The first attempt is due immediately.
func (p *Purger) Schedule(ctx context.Context, tenantID, documentID, path string) (*model.StorageDeletion, error) {
	now := p.now().UTC()
	d := &model.StorageDeletion{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		DocumentID:    documentID,
		Path:          path,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := p.deletions.Schedule(ctx, d); err != nil {
		return nil, fmt.Errorf("schedule deletion of %s: %w", path, err)
	}
	p.metrics.PendingDeletions.Inc()
	p.log.Info().
		Str("event", "deletion_scheduled").
		Str("tenant_id", tenantID).
		Str("document_id", documentID).
		Str("path", path).
		Msg("")
	return d, nil
}

// Result counts the outcomes of one RunOnce pass.
type Result struct {
	Deleted int
	Failed  int
}

// RunOnce attempts every due deletion once.
func (p *Purger) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	due, err := p.deletions.Due(ctx, p.now().UTC(), p.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("load due deletions: %w", err)
	}

	for _, d := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := p.attempt(ctx, d); err != nil {
			res.Failed++
			continue
		}
		res.Deleted++
	}

	if n, err := p.deletions.CountPending(ctx); err == nil {
		p.metrics.PendingDeletions.Set(float64(n))
	}
	return res, nil
}

func (p *Purger) attempt(ctx context.Context, d model.StorageDeletion) error {
	start := time.Now()
	err := p.store.Delete(ctx, d.Path)
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		if merr := p.deletions.MarkDone(ctx, d.ID, p.now().UTC()); merr != nil {
			return merr
		}
		p.metrics.DeletionOutcomes.WithLabelValues("deleted").Inc()
		p.log.Info().
			Str("event", "deletion_completed").
			Str("tenant_id", d.TenantID).
			Str("document_id", d.DocumentID).
			Str("path", d.Path).
			Int("attempts", d.Attempts+1).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("")
		return nil
	}

	attempts := d.Attempts + 1
	next := p.now().UTC().Add(p.Backoff(attempts))
	if merr := p.deletions.MarkFailed(ctx, d.ID, err.Error(), next); merr != nil {
		return errors.Join(err, merr)
	}
	p.metrics.DeletionOutcomes.WithLabelValues("failed").Inc()

	ev := p.log.Warn()
	if attempts >= p.cfg.AlertAttempts {
		ev = p.log.Error().Bool("alert", true)
	}
	ev.Str("event", "deletion_failed").
		Str("tenant_id", d.TenantID).
		Str("document_id", d.DocumentID).
		Str("path", d.Path).
		Int("attempts", attempts).
		Time("next_attempt_at", next).
		Err(err).
		Msg("")
	return err
}

// Backoff returns the delay after the given number of failed attempts:
// InitialBackoff doubled per attempt, capped at MaxBackoff.
func (p *Purger) Backoff(attempts int) time.Duration {
	d := p.cfg.InitialBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= p.cfg.MaxBackoff {
			return p.cfg.MaxBackoff
		}
	}
	return d
}

// Run polls for due deletions until ctx is cancelled.
func (p *Purger) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	p.log.Info().Str("event", "purger_started").Dur("poll_interval", p.cfg.PollInterval).Msg("")
	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.Error().Str("event", "purge_pass_failed").Err(err).Msg("")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
