package model

import "time"

// JobStatus is the state of a reindex job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobDead       JobStatus = "dead"
)

// JobOp selects what the worker does with the search artifacts of a document.
type JobOp string

const (
	JobOpUpsert JobOp = "upsert"
	JobOpRemove JobOp = "remove"
)

// ReindexJob is a unit of work that brings search artifacts for one document version up to date.
type ReindexJob struct {
	ID            string     `json:"id"`
	DocumentID    string     `json:"document_id"`
	TenantID      string     `json:"tenant_id"`
	VersionID     string     `json:"version_id"`
	CorrelationID string     `json:"correlation_id"`
	Op            JobOp      `json:"op"`
	Status        JobStatus  `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	SLAViolated   bool       `json:"sla_violated"`
	EnqueuedAt    time.Time  `json:"enqueued_at"`
	AvailableAt   time.Time  `json:"available_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// QueueStats is the queue depth per status.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Dead       int `json:"dead"`
}

// Depth returns the number of jobs that still need work.
func (s QueueStats) Depth() int {
	return s.Pending + s.Processing + s.Failed
}

// StorageDeletion is a scheduled removal of an object whose document was deleted.
type StorageDeletion struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	DocumentID    string     `json:"document_id"`
	Path          string     `json:"path"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
