package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// JobMemory implements repository.JobRepository.
type JobMemory struct {
	mu   sync.Mutex
	jobs map[string]model.ReindexJob
}

// NewJobMemory creates an empty queue.
func NewJobMemory() *JobMemory {
	return &JobMemory{jobs: make(map[string]model.ReindexJob)}
}

var _ repository.JobRepository = (*JobMemory)(nil)

func (r *JobMemory) Enqueue(_ context.Context, job *model.ReindexJob) (*model.ReindexJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return nil, fmt.Errorf("enqueue job: %w", repository.ErrConflict)
	}
	j := *job
	j.Status = model.JobPending
	j.Attempts = 0
	j.LastError = ""
	j.SLAViolated = false
	j.AvailableAt = j.EnqueuedAt
	j.StartedAt = nil
	j.CompletedAt = nil
	r.jobs[j.ID] = j
	return &j, nil
}

func (r *JobMemory) Claim(_ context.Context, now time.Time) (*model.ReindexJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next *model.ReindexJob
	for _, j := range r.jobs {
		if j.Status != model.JobPending || j.AvailableAt.After(now) {
			continue
		}
		if next == nil || j.EnqueuedAt.Before(next.EnqueuedAt) ||
			(j.EnqueuedAt.Equal(next.EnqueuedAt) && j.ID < next.ID) {
			j := j
			next = &j
		}
	}
	if next == nil {
		return nil, fmt.Errorf("claim job: %w", repository.ErrNotFound)
	}
	started := now
	next.Status = model.JobProcessing
	next.Attempts++
	next.StartedAt = &started
	r.jobs[next.ID] = *next
	return next, nil
}

func (r *JobMemory) Complete(_ context.Context, id string, completedAt time.Time, slaViolated bool) error {
	return r.update("complete job", id, func(j *model.ReindexJob) {
		j.Status = model.JobCompleted
		j.CompletedAt = &completedAt
		j.SLAViolated = slaViolated
		j.LastError = ""
	})
}

func (r *JobMemory) Fail(_ context.Context, id string, status model.JobStatus, lastError string, availableAt time.Time) error {
	return r.update("fail job", id, func(j *model.ReindexJob) {
		j.Status = status
		j.LastError = lastError
		j.AvailableAt = availableAt
	})
}

func (r *JobMemory) RequeueFailed(_ context.Context, now time.Time) (int, error) {
	return r.each(func(j *model.ReindexJob) bool {
		if j.Status == model.JobFailed && !j.AvailableAt.After(now) {
			j.Status = model.JobPending
			return true
		}
		return false
	}), nil
}

func (r *JobMemory) ReleaseStale(_ context.Context, startedBefore time.Time, maxAttempts int) (released, dead int, err error) {
	r.each(func(j *model.ReindexJob) bool {
		if j.Status != model.JobProcessing || j.StartedAt == nil || !j.StartedAt.Before(startedBefore) {
			return false
		}
		j.AvailableAt = startedBefore
		if j.Attempts >= maxAttempts {
			j.Status = model.JobDead
			j.LastError = "processing timed out"
			dead++
		} else {
			j.Status = model.JobPending
			released++
		}
		return true
	})
	return released, dead, nil
}

func (r *JobMemory) PurgeCompleted(_ context.Context, completedBefore time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, j := range r.jobs {
		if j.Status == model.JobCompleted && j.CompletedAt != nil && j.CompletedAt.Before(completedBefore) {
			delete(r.jobs, id)
			n++
		}
	}
	return n, nil
}

func (r *JobMemory) Stats(_ context.Context) (model.QueueStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var st model.QueueStats
	for _, j := range r.jobs {
		switch j.Status {
		case model.JobPending:
			st.Pending++
		case model.JobProcessing:
			st.Processing++
		case model.JobCompleted:
			st.Completed++
		case model.JobFailed:
			st.Failed++
		case model.JobDead:
			st.Dead++
		}
	}
	return st, nil
}

func (r *JobMemory) FindByID(_ context.Context, id string) (*model.ReindexJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("find job: %w", repository.ErrNotFound)
	}
	return &j, nil
}

// Jobs returns every job ordered by enqueue time, for tests and diagnostics.
func (r *JobMemory) Jobs() []model.ReindexJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ReindexJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].EnqueuedAt.Equal(out[k].EnqueuedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].EnqueuedAt.Before(out[k].EnqueuedAt)
	})
	return out
}

func (r *JobMemory) update(op, id string, fn func(j *model.ReindexJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	fn(&j)
	r.jobs[id] = j
	return nil
}

func (r *JobMemory) each(fn func(j *model.ReindexJob) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, j := range r.jobs {
		if fn(&j) {
			r.jobs[id] = j
			n++
		}
	}
	return n
}
