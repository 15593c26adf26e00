package reindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"docvault/internal/model"
)

// Worker pulls jobs from a Queue with a fixed number of goroutines.
type Worker struct {
	queue       *Queue
	proc        Processor
	concurrency int
	poll        time.Duration
	maintenance time.Duration
	log         zerolog.Logger
}

// NewWorker creates a worker. Concurrency and poll interval come from the queue config.
func NewWorker(queue *Queue, proc Processor, log zerolog.Logger) *Worker {
	concurrency := queue.cfg.Workers
	if concurrency <= 0 {
		concurrency = 1
	}
	poll := queue.cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Worker{
		queue:       queue,
		proc:        proc,
		concurrency: concurrency,
		poll:        poll,
		maintenance: queue.cfg.RetryDelay,
		log:         log.With().Str("component", "reindex_worker").Logger(),
	}
}

// Run processes jobs until ctx is cancelled. A maintenance loop requeues failed jobs,
// releases stale claims and garbage-collects completed jobs.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return w.loop(ctx)
		})
	}
	g.Go(func() error {
		return w.maintain(ctx)
	})

	w.log.Info().Str("event", "reindex_worker_started").Int("concurrency", w.concurrency).Msg("")
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		processed, err := w.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			w.log.Error().Str("event", "reindex_loop_error").Err(err).Msg("")
		}
		if processed && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.poll):
		}
	}
}

func (w *Worker) maintain(ctx context.Context) error {
	ticker := time.NewTicker(w.maintenance)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.queue.Maintain(ctx); err != nil && ctx.Err() == nil {
				w.log.Error().Str("event", "reindex_maintenance_failed").Err(err).Msg("")
			}
		}
	}
}

// RunOnce claims and processes a single job. It reports false when the queue had nothing available.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.Claim(ctx)
	if errors.Is(err, ErrNoJob) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	start := time.Now()
	if perr := w.process(ctx, job); perr != nil {
		_, err := w.queue.Fail(ctx, job, perr)
		return true, err
	}
	if _, err := w.queue.Complete(ctx, job); err != nil {
		return true, err
	}
	w.log.Debug().
		Str("event", "reindex_completed").
		Str("job_id", job.ID).
		Str("document_id", job.DocumentID).
		Str("version_id", job.VersionID).
		Str("correlation_id", job.CorrelationID).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("")
	return true, nil
}

// Drain processes jobs until none is available and returns how many were handled.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		processed, err := w.RunOnce(ctx)
		if err != nil {
			return n, err
		}
		if !processed {
			return n, nil
		}
		n++
	}
}

func (w *Worker) process(ctx context.Context, job *model.ReindexJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reindex panic: %v", r)
		}
	}()
	return w.proc.Process(ctx, job)
}
