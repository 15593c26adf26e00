package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docvault/internal/model"
)

// ReconcileResult reports the counters before and after a reconciliation.
type ReconcileResult struct {
	TenantID string
	Before   model.TenantQuota
	After    model.TenantQuota
}

// Drifted reports whether reconciliation changed either counter.
func (r ReconcileResult) Drifted() bool {
	return r.Before.StorageUsedBytes != r.After.StorageUsedBytes ||
		r.Before.DocumentCount != r.After.DocumentCount
}

// Reconcile overwrites the tenant's counters with the sum and count of its active
// documents. It takes no lock and is safe to repeat or run alongside live traffic.
func (l *Ledger) Reconcile(ctx context.Context, tenantID string) (ReconcileResult, error) {
	before, err := l.GetOrCreate(ctx, tenantID)
	if err != nil {
		l.metrics.ReconcileFailure.Inc()
		return ReconcileResult{}, err
	}
	usage, err := l.usage.ActiveUsage(ctx, tenantID)
	if err != nil {
		l.metrics.ReconcileFailure.Inc()
		return ReconcileResult{}, fmt.Errorf("compute usage of %s: %w", tenantID, err)
	}
	after, err := l.quotas.SetUsage(ctx, tenantID, usage)
	if err != nil {
		l.metrics.ReconcileFailure.Inc()
		return ReconcileResult{}, err
	}
	l.metrics.ReconcileRuns.Inc()

	res := ReconcileResult{TenantID: tenantID, Before: *before, After: *after}
	if res.Before.StorageUsedBytes != res.After.StorageUsedBytes {
		l.metrics.ReconcileDrift.WithLabelValues("storage_bytes").Inc()
	}
	if res.Before.DocumentCount != res.After.DocumentCount {
		l.metrics.ReconcileDrift.WithLabelValues("document_count").Inc()
	}
	if res.Drifted() {
		l.log.Warn().
			Str("event", "quota_drift_corrected").
			Str("tenant_id", tenantID).
			Uint64("storage_before", res.Before.StorageUsedBytes).
			Uint64("storage_after", res.After.StorageUsedBytes).
			Uint64("documents_before", res.Before.DocumentCount).
			Uint64("documents_after", res.After.DocumentCount).
			Msg("")
	}
	return res, nil
}

// ReconcileAll reconciles every known tenant. Failures do not stop the pass;
// they are joined into the returned error.
func (l *Ledger) ReconcileAll(ctx context.Context) ([]ReconcileResult, error) {
	tenants, err := l.quotas.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	results := make([]ReconcileResult, 0, len(tenants))
	var errs []error
	for _, t := range tenants {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := l.Reconcile(ctx, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile %s: %w", t, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// RunReconciler calls ReconcileAll every interval until ctx is cancelled.
func (l *Ledger) RunReconciler(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			results, err := l.ReconcileAll(ctx)
			drifted := 0
			for _, r := range results {
				if r.Drifted() {
					drifted++
				}
			}
			ev := l.log.Info()
			if err != nil {
				ev = l.log.Error().Err(err)
			}
			ev.Str("event", "quota_reconcile_pass").
				Int("tenants", len(results)).
				Int("drifted", drifted).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("")
		}
	}
}
