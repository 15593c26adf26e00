package reindex

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
)

// ErrNoJob is returned by Claim when no job is available.
var ErrNoJob = errors.New("no reindex job available")

// DefaultSLA is the maximum allowed time from enqueue to completion.
const DefaultSLA = 5 * time.Minute

// Request describes the mutation a job makes visible to search.
type Request struct {
	DocumentID    string
	TenantID      string
	VersionID     string
	CorrelationID string
	Op            model.JobOp
}

// Options configure a Queue.
type Options struct {
	Config  config.QueueConfig
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Queue is the durable reindex queue. Delivery is at-least-once: a job may be processed
// more than once, so processors must be idempotent per (document, version).
type Queue struct {
	jobs    repository.JobRepository
	cfg     config.QueueConfig
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// NewQueue creates a queue over jobs.
func NewQueue(jobs repository.JobRepository, opt Options) *Queue {
	cfg := opt.Config
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.SLA <= 0 {
		cfg.SLA = DefaultSLA
	}
	if cfg.CompletedRetention <= 0 {
		cfg.CompletedRetention = time.Hour
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 10 * time.Minute
	}
	if opt.Metrics == nil {
		opt.Metrics = metrics.New(nil)
	}
	if opt.Clock == nil {
		opt.Clock = time.Now
	}
	return &Queue{
		jobs:    jobs,
		cfg:     cfg,
		metrics: opt.Metrics,
		log:     opt.Logger.With().Str("component", "reindex").Logger(),
		now:     opt.Clock,
	}
}

// Enqueue appends a pending job. Callers invoke it synchronously inside the mutating operation.
func (q *Queue) Enqueue(ctx context.Context, req Request) (*model.ReindexJob, error) {
	if req.DocumentID == "" || req.TenantID == "" {
		return nil, errors.New("reindex job needs a document and a tenant")
	}
	if req.Op == "" {
		req.Op = model.JobOpUpsert
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	job, err := q.jobs.Enqueue(ctx, &model.ReindexJob{
		ID:            uuid.NewString(),
		DocumentID:    req.DocumentID,
		TenantID:      req.TenantID,
		VersionID:     req.VersionID,
		CorrelationID: req.CorrelationID,
		Op:            req.Op,
		EnqueuedAt:    q.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue reindex job: %w", err)
	}
	q.metrics.JobsEnqueued.WithLabelValues(string(job.Op)).Inc()
	q.log.Debug().
		Str("event", "reindex_enqueued").
		Str("job_id", job.ID).
		Str("tenant_id", job.TenantID).
		Str("document_id", job.DocumentID).
		Str("version_id", job.VersionID).
		Str("correlation_id", job.CorrelationID).
		Str("op", string(job.Op)).
		Msg("")
	return job, nil
}

// Claim takes the next available job or returns ErrNoJob.
func (q *Queue) Claim(ctx context.Context) (*model.ReindexJob, error) {
	job, err := q.jobs.Claim(ctx, q.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// SLAViolated reports whether a job completed later than sla after it was enqueued.
func SLAViolated(enqueuedAt, completedAt time.Time, sla time.Duration) bool {
	return completedAt.Sub(enqueuedAt) > sla
}

// Complete marks job completed. Lateness beyond the SLA does not fail the job; it is
// recorded on the job, counted and logged as a separate signal.
func (q *Queue) Complete(ctx context.Context, job *model.ReindexJob) (bool, error) {
	now := q.now().UTC()
	latency := now.Sub(job.EnqueuedAt)
	violated := SLAViolated(job.EnqueuedAt, now, q.cfg.SLA)

	if err := q.jobs.Complete(ctx, job.ID, now, violated); err != nil {
		return false, fmt.Errorf("complete reindex job %s: %w", job.ID, err)
	}
	q.metrics.JobOutcomes.WithLabelValues("completed").Inc()
	q.metrics.JobLatency.Observe(latency.Seconds())

	if violated {
		q.metrics.SLAViolations.Inc()
		q.log.Warn().
			Str("event", "reindex_sla_violation").
			Str("job_id", job.ID).
			Str("tenant_id", job.TenantID).
			Str("document_id", job.DocumentID).
			Str("version_id", job.VersionID).
			Str("correlation_id", job.CorrelationID).
			Dur("latency", latency).
			Dur("sla", q.cfg.SLA).
			Msg("reindex completed after SLA")
	}
	return violated, nil
}

// Fail records a failed attempt. The job goes back to pending after a growing delay,
// or becomes dead once it has used MaxAttempts attempts.
func (q *Queue) Fail(ctx context.Context, job *model.ReindexJob, cause error) (model.JobStatus, error) {
	now := q.now().UTC()
	status := model.JobFailed
	if job.Attempts >= q.cfg.MaxAttempts {
		status = model.JobDead
	}
	available := now.Add(q.retryDelay(job.Attempts))
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if err := q.jobs.Fail(ctx, job.ID, status, msg, available); err != nil {
		return "", fmt.Errorf("fail reindex job %s: %w", job.ID, err)
	}
	q.metrics.JobOutcomes.WithLabelValues(string(status)).Inc()

	ev := q.log.Warn()
	if status == model.JobDead {
		ev = q.log.Error()
	}
	ev.Str("event", "reindex_"+string(status)).
		Str("job_id", job.ID).
		Str("tenant_id", job.TenantID).
		Str("document_id", job.DocumentID).
		Str("version_id", job.VersionID).
		Str("correlation_id", job.CorrelationID).
		Int("attempts", job.Attempts).
		Err(cause).
		Msg("")
	return status, nil
}

func (q *Queue) retryDelay(attempts int) time.Duration {
	d := q.cfg.RetryDelay
	for i := 1; i < attempts && d < time.Hour; i++ {
		d *= 2
	}
	return d
}

// Stats returns the queue depth per status and refreshes the depth gauges.
func (q *Queue) Stats(ctx context.Context) (model.QueueStats, error) {
	st, err := q.jobs.Stats(ctx)
	if err != nil {
		return model.QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	q.metrics.QueueDepth.WithLabelValues(string(model.JobPending)).Set(float64(st.Pending))
	q.metrics.QueueDepth.WithLabelValues(string(model.JobProcessing)).Set(float64(st.Processing))
	q.metrics.QueueDepth.WithLabelValues(string(model.JobCompleted)).Set(float64(st.Completed))
	q.metrics.QueueDepth.WithLabelValues(string(model.JobFailed)).Set(float64(st.Failed))
	q.metrics.QueueDepth.WithLabelValues(string(model.JobDead)).Set(float64(st.Dead))
	return st, nil
}

// MaintenanceResult counts the rows touched by Maintain.
type MaintenanceResult struct {
	Requeued  int
	Released  int
	Dead      int
	Collected int
}

// Maintain requeues failed jobs whose delay passed, releases jobs stuck in processing
// (burying those that used every attempt) and garbage-collects completed jobs past the
// retention window.
func (q *Queue) Maintain(ctx context.Context) (MaintenanceResult, error) {
	now := q.now().UTC()
	var res MaintenanceResult
	var err error

	if res.Requeued, err = q.jobs.RequeueFailed(ctx, now); err != nil {
		return res, err
	}
	if res.Released, res.Dead, err = q.jobs.ReleaseStale(ctx, now.Add(-q.cfg.ProcessingTimeout), q.cfg.MaxAttempts); err != nil {
		return res, err
	}
	if res.Collected, err = q.jobs.PurgeCompleted(ctx, now.Add(-q.cfg.CompletedRetention)); err != nil {
		return res, err
	}
	if res.Released > 0 {
		q.log.Warn().Str("event", "reindex_released_stale").Int("jobs", res.Released).Msg("")
	}
	if res.Dead > 0 {
		q.metrics.JobOutcomes.WithLabelValues(string(model.JobDead)).Add(float64(res.Dead))
		q.log.Error().Str("event", "reindex_stale_dead").Int("jobs", res.Dead).Msg("")
	}
	_, err = q.Stats(ctx)
	return res, err
}
