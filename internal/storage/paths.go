package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PathKind selects one of the object layouts the rest of the system may trust.
type PathKind int

const (
	// PathDocument is tenants/{tenant}/docs/{doc}/{name}, the canonical document path.
	PathDocument PathKind = iota
	// PathPreview is tenants/{tenant}/previews/{doc}/{name}.
	PathPreview
	// PathMetadata is tenants/{tenant}/metadata/{doc}.json, the search artifact.
	PathMetadata
	// PathEmbedding is tenants/{tenant}/embeddings/{doc}.json.
	PathEmbedding
	// PathTempUpload is tmp/uploads/{random}/{name}. The tenant is validated but not encoded.
	PathTempUpload
)

func (k PathKind) String() string {
	switch k {
	case PathDocument:
		return "document"
	case PathPreview:
		return "preview"
	case PathMetadata:
		return "metadata"
	case PathEmbedding:
		return "embedding"
	case PathTempUpload:
		return "temp"
	default:
		return fmt.Sprintf("PathKind(%d)", int(k))
	}
}

const (
	tenantsPrefix = "tenants"
	docsSegment   = "docs"
)

// PathFor builds the object path of the given kind. It is deterministic for every kind
// except PathTempUpload, which embeds a random component.
func PathFor(kind PathKind, tenantID, docID, name string) (string, error) {
	if err := checkSegment("tenant", tenantID); err != nil {
		return "", err
	}

	switch kind {
	case PathDocument, PathPreview:
		if err := checkSegment("document id", docID); err != nil {
			return "", err
		}
		if err := checkSegment("file name", name); err != nil {
			return "", err
		}
		dir := docsSegment
		if kind == PathPreview {
			dir = "previews"
		}
		return strings.Join([]string{tenantsPrefix, tenantID, dir, docID, name}, "/"), nil
	case PathMetadata, PathEmbedding:
		if err := checkSegment("document id", docID); err != nil {
			return "", err
		}
		dir := "metadata"
		if kind == PathEmbedding {
			dir = "embeddings"
		}
		return strings.Join([]string{tenantsPrefix, tenantID, dir, docID + ".json"}, "/"), nil
	case PathTempUpload:
		if err := checkSegment("file name", name); err != nil {
			return "", err
		}
		return strings.Join([]string{"tmp", "uploads", uuid.NewString(), name}, "/"), nil
	default:
		return "", &PathError{Reason: fmt.Sprintf("unknown path kind %d", int(kind))}
	}
}

// ValidateCanonicalPath accepts only tenants/{tenant}/docs/{doc}/{name} paths whose tenant
// segment equals tenantID and, when expectedName is not empty, whose name segment equals it.
// The returned error is a *PathError carrying the reason.
func ValidateCanonicalPath(path, tenantID, expectedName string) error {
	parts := strings.Split(path, "/")
	if len(parts) != 5 || parts[0] != tenantsPrefix || parts[2] != docsSegment {
		return &PathError{Path: path, Reason: "expected tenants/{tenant}/docs/{document}/{file name}"}
	}
	segments := []struct {
		idx   int
		label string
	}{{1, "tenant"}, {3, "document id"}, {4, "file name"}}
	for _, seg := range segments {
		if err := checkSegment(seg.label, parts[seg.idx]); err != nil {
			return &PathError{Path: path, Reason: err.(*PathError).Reason}
		}
	}
	if tenantID == "" || parts[1] != tenantID {
		return &PathError{Path: path, Reason: "tenant segment does not match the caller"}
	}
	if expectedName != "" && parts[4] != expectedName {
		return &PathError{Path: path, Reason: "file name segment does not match the document"}
	}
	return nil
}

func checkSegment(label, s string) error {
	switch {
	case s == "":
		return &PathError{Path: s, Reason: label + " is empty"}
	case s == "." || s == "..":
		return &PathError{Path: s, Reason: label + " is a relative segment"}
	case strings.ContainsAny(s, "/\\"):
		return &PathError{Path: s, Reason: label + " contains a path separator"}
	case strings.ContainsFunc(s, func(r rune) bool { return r < 0x20 || r == 0x7f }):
		return &PathError{Path: s, Reason: label + " contains control characters"}
	}
	return nil
}
