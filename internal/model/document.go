package model

import "time"

// DocumentStatus is the lifecycle state of a document's metadata.
type DocumentStatus string

const (
	DocumentActive  DocumentStatus = "active"
	DocumentTrashed DocumentStatus = "trashed"
	DocumentDeleted DocumentStatus = "deleted"
)

// Document represents a stored file in the system.
// Its json tags define the API representation; column mapping stays in the repositories.
// It is the source of truth the quota ledger reconciles against.
type Document struct {
	ID               string         `json:"id"`
	TenantID         string         `json:"tenant_id"`
	Name             string         `json:"name"`
	OriginalFilename string         `json:"original_filename"`
	CurrentVersionID string         `json:"current_version_id"`
	Status           DocumentStatus `json:"status"`
	FileSizeBytes    uint64         `json:"file_size_bytes"`
	ContentType      string         `json:"content_type"`
	StoragePath      string         `json:"storage_path"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsActive reports whether the document counts towards quota and search.
func (d *Document) IsActive() bool {
	return d.Status == DocumentActive
}

// StoredObject describes an object held by the object store.
type StoredObject struct {
	Path        string `json:"path"`
	Bucket      string `json:"bucket"`
	ContentType string `json:"content_type"`
	SizeBytes   uint64 `json:"size_bytes"`
	ETag        string `json:"etag,omitempty"`
}
