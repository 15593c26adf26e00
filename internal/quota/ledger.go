package quota

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"docvault/internal/config"
	"docvault/internal/metrics"
	"docvault/internal/model"
	"docvault/internal/repository"
)

const reserveAttempts = 3

// Resources a quota can be exceeded on.
const (
	ResourceStorage   = "storage"
	ResourceDocuments = "documents"
)

// ErrQuotaExceeded matches every *ExceededError.
var ErrQuotaExceeded = errors.New("quota exceeded")

// ExceededError is a business-rule rejection carrying enough context for an actionable message.
// For documents, Current/Limit count documents and Overage is always 1.
type ExceededError struct {
	TenantID  string
	Resource  string
	Current   uint64
	Limit     uint64
	Requested uint64
	Overage   uint64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("tenant %s %s quota exceeded: current %d, limit %d, requested %d, overage %d",
		e.TenantID, e.Resource, e.Current, e.Limit, e.Requested, e.Overage)
}

func (e *ExceededError) Unwrap() error { return ErrQuotaExceeded }

// Decision is the result of a read-only quota check.
type Decision struct {
	Allowed  bool
	Resource string
	Current  uint64
	Limit    uint64
	Overage  uint64
}

// Err returns nil for an allowed decision and an *ExceededError otherwise.
func (d Decision) Err(tenantID string, requested uint64) error {
	if d.Allowed {
		return nil
	}
	return &ExceededError{
		TenantID:  tenantID,
		Resource:  d.Resource,
		Current:   d.Current,
		Limit:     d.Limit,
		Requested: requested,
		Overage:   d.Overage,
	}
}

// UsageSource yields the authoritative usage of a tenant.
type UsageSource interface {
	ActiveUsage(ctx context.Context, tenantID string) (model.Usage, error)
}

// Ledger keeps per-tenant storage and document counters. Mutations are single
// repository statements; Reconcile recomputes both counters from the document set.
type Ledger struct {
	quotas   repository.QuotaRepository
	usage    UsageSource
	defaults config.QuotaConfig
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewLedger creates a ledger. Quotas are created lazily with the configured defaults.
func NewLedger(quotas repository.QuotaRepository, usage UsageSource, defaults config.QuotaConfig, m *metrics.Metrics, log zerolog.Logger) *Ledger {
	if m == nil {
		m = metrics.New(nil)
	}
	if defaults.DefaultTier == "" {
		defaults.DefaultTier = "free"
	}
	return &Ledger{
		quotas:   quotas,
		usage:    usage,
		defaults: defaults,
		metrics:  m,
		log:      log.With().Str("component", "quota").Logger(),
	}
}

// GetOrCreate returns the tenant's quota, creating it with defaults on first access.
func (l *Ledger) GetOrCreate(ctx context.Context, tenantID string) (*model.TenantQuota, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	return l.quotas.GetOrCreate(ctx, model.TenantQuota{
		TenantID:          tenantID,
		StorageLimitBytes: l.defaults.DefaultStorageLimitBytes,
		DocumentLimit:     l.defaults.DefaultDocumentLimit,
		Tier:              l.defaults.DefaultTier,
	})
}

// CheckStorage reports whether candidateBytes more fit under the storage limit. It does not mutate.
func (l *Ledger) CheckStorage(ctx context.Context, tenantID string, candidateBytes uint64) (Decision, error) {
	q, err := l.GetOrCreate(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}
	return storageDecision(q, candidateBytes), nil
}

// CheckDocumentCount reports whether one more document fits under the document limit.
func (l *Ledger) CheckDocumentCount(ctx context.Context, tenantID string) (Decision, error) {
	q, err := l.GetOrCreate(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}
	return documentDecision(q), nil
}

func storageDecision(q *model.TenantQuota, candidate uint64) Decision {
	d := Decision{Resource: ResourceStorage, Current: q.StorageUsedBytes, Limit: q.StorageLimitBytes}
	remaining := q.RemainingBytes()
	if candidate <= remaining {
		d.Allowed = true
		return d
	}
	d.Overage = candidate - remaining
	return d
}

func documentDecision(q *model.TenantQuota) Decision {
	d := Decision{Resource: ResourceDocuments, Current: q.DocumentCount, Limit: q.DocumentLimit}
	if q.DocumentCount < q.DocumentLimit {
		d.Allowed = true
		return d
	}
	d.Overage = q.DocumentCount + 1 - q.DocumentLimit
	return d
}

// Check runs both checks for an upload of bytes and returns an *ExceededError for the
// first one denied, storage first.
func (l *Ledger) Check(ctx context.Context, tenantID string, bytes uint64) error {
	q, err := l.GetOrCreate(ctx, tenantID)
	if err != nil {
		return err
	}
	return l.deny(tenantID, bytes, q)
}

func (l *Ledger) deny(tenantID string, bytes uint64, q *model.TenantQuota) error {
	if d := storageDecision(q, bytes); !d.Allowed {
		l.metrics.QuotaDenials.WithLabelValues(ResourceStorage).Inc()
		return d.Err(tenantID, bytes)
	}
	if d := documentDecision(q); !d.Allowed {
		l.metrics.QuotaDenials.WithLabelValues(ResourceDocuments).Inc()
		return d.Err(tenantID, 1)
	}
	return nil
}

// Reserve atomically claims bytes and one document for an upload. When a concurrent
// upload takes the remaining room first, the returned *ExceededError reflects the fresh counters.
func (l *Ledger) Reserve(ctx context.Context, tenantID string, bytes uint64) error {
	q, err := l.GetOrCreate(ctx, tenantID)
	if err != nil {
		return err
	}
	for range reserveAttempts {
		if err := l.deny(tenantID, bytes, q); err != nil {
			return err
		}
		_, err = l.quotas.Reserve(ctx, tenantID, bytes)
		if !errors.Is(err, repository.ErrLimitExceeded) {
			return err
		}
		// Counters moved between the read and the conditional update.
		if q, err = l.quotas.Get(ctx, tenantID); err != nil {
			return err
		}
	}
	l.metrics.QuotaDenials.WithLabelValues(ResourceStorage).Inc()
	return &ExceededError{
		TenantID:  tenantID,
		Resource:  ResourceStorage,
		Current:   q.StorageUsedBytes,
		Limit:     q.StorageLimitBytes,
		Requested: bytes,
		Overage:   subClamp(q.StorageUsedBytes+bytes, q.StorageLimitBytes),
	}
}

// ApplyUpload unconditionally adds bytes and one document.
func (l *Ledger) ApplyUpload(ctx context.Context, tenantID string, bytes uint64) error {
	if _, err := l.GetOrCreate(ctx, tenantID); err != nil {
		return err
	}
	return l.quotas.ApplyUpload(ctx, tenantID, bytes)
}

// ApplyDelete subtracts bytes and one document, clamped at zero.
func (l *Ledger) ApplyDelete(ctx context.Context, tenantID string, bytes uint64) error {
	if _, err := l.GetOrCreate(ctx, tenantID); err != nil {
		return err
	}
	return l.quotas.ApplyDelete(ctx, tenantID, bytes)
}

// ApplyReplace swaps the size of a superseded version for the new one.
// Growth beyond the storage limit is rejected with an *ExceededError.
func (l *Ledger) ApplyReplace(ctx context.Context, tenantID string, oldBytes, newBytes uint64) error {
	q, err := l.GetOrCreate(ctx, tenantID)
	if err != nil {
		return err
	}
	err = l.quotas.ApplyReplace(ctx, tenantID, oldBytes, newBytes)
	if !errors.Is(err, repository.ErrLimitExceeded) {
		return err
	}
	if fresh, gerr := l.quotas.Get(ctx, tenantID); gerr == nil {
		q = fresh
	}
	l.metrics.QuotaDenials.WithLabelValues(ResourceStorage).Inc()
	base := subClamp(q.StorageUsedBytes, oldBytes)
	return &ExceededError{
		TenantID:  tenantID,
		Resource:  ResourceStorage,
		Current:   q.StorageUsedBytes,
		Limit:     q.StorageLimitBytes,
		Requested: newBytes,
		Overage:   subClamp(base+newBytes, q.StorageLimitBytes),
	}
}

// SetLimits changes a tenant's limits and tier.
func (l *Ledger) SetLimits(ctx context.Context, tenantID string, storageLimit, documentLimit uint64, tier string) (*model.TenantQuota, error) {
	if _, err := l.GetOrCreate(ctx, tenantID); err != nil {
		return nil, err
	}
	return l.quotas.SetLimits(ctx, tenantID, storageLimit, documentLimit, tier)
}

// Summary is the dashboard view of a tenant's quota. Percentages are display-only.
type Summary struct {
	Storage   StorageSummary  `json:"storage"`
	Documents DocumentSummary `json:"documents"`
	Tier      string          `json:"tier"`
}

type StorageSummary struct {
	UsedBytes  uint64  `json:"usedBytes"`
	LimitBytes uint64  `json:"limitBytes"`
	Percentage float64 `json:"percentage"`
}

type DocumentSummary struct {
	Count      uint64  `json:"count"`
	Limit      uint64  `json:"limit"`
	Percentage float64 `json:"percentage"`
}

// Summary returns the quota summary of a tenant.
func (l *Ledger) Summary(ctx context.Context, tenantID string) (Summary, error) {
	q, err := l.GetOrCreate(ctx, tenantID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Storage: StorageSummary{
			UsedBytes:  q.StorageUsedBytes,
			LimitBytes: q.StorageLimitBytes,
			Percentage: Percentage(q.StorageUsedBytes, q.StorageLimitBytes),
		},
		Documents: DocumentSummary{
			Count:      q.DocumentCount,
			Limit:      q.DocumentLimit,
			Percentage: Percentage(q.DocumentCount, q.DocumentLimit),
		},
		Tier: q.Tier,
	}, nil
}

// Percentage renders used/limit as a percentage rounded to two decimals.
func Percentage(used, limit uint64) float64 {
	if limit == 0 {
		if used == 0 {
			return 0
		}
		return 100
	}
	return math.Round(float64(used)/float64(limit)*10000) / 100
}

func subClamp(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
