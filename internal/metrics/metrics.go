package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of the storage, quota and reindex subsystems.
// Build one per registry with New and pass it to the components that record.
type Metrics struct {
	// Object store
	StorageAttempts *prometheus.CounterVec // docvault_storage_attempts_total{operation,outcome}
	StorageRetries  *prometheus.CounterVec // docvault_storage_retries_total{operation}
	StorageFailures *prometheus.CounterVec // docvault_storage_failures_total{operation,kind}

	// Quota
	QuotaDenials     *prometheus.CounterVec // docvault_quota_denials_total{resource}
	ReconcileDrift   *prometheus.CounterVec // docvault_quota_reconcile_drift_total{counter}
	ReconcileRuns    prometheus.Counter
	ReconcileFailure prometheus.Counter

	// Reindex queue
	QueueDepth    *prometheus.GaugeVec   // docvault_reindex_jobs{status}
	JobsEnqueued  *prometheus.CounterVec // docvault_reindex_enqueued_total{op}
	JobOutcomes   *prometheus.CounterVec // docvault_reindex_outcomes_total{outcome}
	JobLatency    prometheus.Histogram   // enqueue to completion, seconds
	SLAViolations prometheus.Counter

	// Storage deletions
	PendingDeletions prometheus.Gauge
	DeletionOutcomes *prometheus.CounterVec // docvault_storage_deletions_total{outcome}
}

// New registers all collectors on registry. A nil registry uses a private one,
// which keeps tests and optional wiring free of duplicate registration panics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	f := promauto.With(registry)

	return &Metrics{
		StorageAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_storage_attempts_total",
			Help: "Object store call attempts by operation and outcome",
		}, []string{"operation", "outcome"}),
		StorageRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_storage_retries_total",
			Help: "Object store retries by operation",
		}, []string{"operation"}),
		StorageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_storage_failures_total",
			Help: "Object store calls that failed after the retry policy, by error kind",
		}, []string{"operation", "kind"}),

		QuotaDenials: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_quota_denials_total",
			Help: "Quota checks that denied a request, by resource",
		}, []string{"resource"}),
		ReconcileDrift: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_quota_reconcile_drift_total",
			Help: "Tenants whose ledger counter differed from the document set during reconciliation",
		}, []string{"counter"}),
		ReconcileRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "docvault_quota_reconcile_runs_total",
			Help: "Tenant reconciliations performed",
		}),
		ReconcileFailure: f.NewCounter(prometheus.CounterOpts{
			Name: "docvault_quota_reconcile_failures_total",
			Help: "Tenant reconciliations that failed",
		}),

		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docvault_reindex_jobs",
			Help: "Reindex jobs by status",
		}, []string{"status"}),
		JobsEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_reindex_enqueued_total",
			Help: "Reindex jobs enqueued by operation",
		}, []string{"op"}),
		JobOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_reindex_outcomes_total",
			Help: "Reindex job results by outcome",
		}, []string{"outcome"}),
		JobLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docvault_reindex_latency_seconds",
			Help:    "Time from enqueue to completion of reindex jobs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		SLAViolations: f.NewCounter(prometheus.CounterOpts{
			Name: "docvault_reindex_sla_violations_total",
			Help: "Reindex jobs completed later than the SLA",
		}),

		PendingDeletions: f.NewGauge(prometheus.GaugeOpts{
			Name: "docvault_storage_deletions_pending",
			Help: "Scheduled object deletions not yet completed",
		}),
		DeletionOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docvault_storage_deletions_total",
			Help: "Scheduled object deletion attempts by outcome",
		}, []string{"outcome"}),
	}
}
