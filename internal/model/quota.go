package model

import "time"

// TenantQuota holds the running storage and document counters of a tenant.
// Byte quantities are unsigned; display conversions are derived elsewhere.
type TenantQuota struct {
	TenantID          string    `json:"tenant_id"`
	StorageLimitBytes uint64    `json:"storage_limit_bytes"`
	StorageUsedBytes  uint64    `json:"storage_used_bytes"`
	DocumentLimit     uint64    `json:"document_limit"`
	DocumentCount     uint64    `json:"document_count"`
	Tier              string    `json:"tier"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RemainingBytes returns the bytes still available under the storage limit.
func (q *TenantQuota) RemainingBytes() uint64 {
	if q.StorageUsedBytes >= q.StorageLimitBytes {
		return 0
	}
	return q.StorageLimitBytes - q.StorageUsedBytes
}

// Usage is the authoritative usage of a tenant computed from its active documents.
type Usage struct {
	StorageBytes  uint64
	DocumentCount uint64
}
