package storage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFor(t *testing.T) {
	tests := []struct {
		name    string
		kind    PathKind
		tenant  string
		doc     string
		file    string
		want    string
		wantErr bool
	}{
		{name: "document", kind: PathDocument, tenant: "t1", doc: "d1", file: "report.pdf", want: "tenants/t1/docs/d1/report.pdf"},
		{name: "preview", kind: PathPreview, tenant: "t1", doc: "d1", file: "page-1.png", want: "tenants/t1/previews/d1/page-1.png"},
		{name: "metadata", kind: PathMetadata, tenant: "t1", doc: "d1", want: "tenants/t1/metadata/d1.json"},
		{name: "embedding", kind: PathEmbedding, tenant: "t1", doc: "d1", want: "tenants/t1/embeddings/d1.json"},
		{name: "empty tenant", kind: PathDocument, tenant: "", doc: "d1", file: "a.txt", wantErr: true},
		{name: "traversal in name", kind: PathDocument, tenant: "t1", doc: "d1", file: "..", wantErr: true},
		{name: "separator in doc", kind: PathDocument, tenant: "t1", doc: "d1/x", file: "a.txt", wantErr: true},
		{name: "control char", kind: PathDocument, tenant: "t1", doc: "d1", file: "a\x00.txt", wantErr: true},
		{name: "unknown kind", kind: PathKind(42), tenant: "t1", doc: "d1", file: "a.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PathFor(tt.kind, tt.tenant, tt.doc, tt.file)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidPath))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := PathFor(tt.kind, tt.tenant, tt.doc, tt.file)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestPathFor_TempUploadIsUnique(t *testing.T) {
	a, err := PathFor(PathTempUpload, "t1", "", "a.txt")
	require.NoError(t, err)
	b, err := PathFor(PathTempUpload, "t1", "", "a.txt")
	require.NoError(t, err)

	parts := strings.Split(a, "/")
	require.Len(t, parts, 4)
	assert.Equal(t, []string{"tmp", "uploads"}, parts[:2])
	_, err = uuid.Parse(parts[2])
	assert.NoError(t, err)
	assert.Equal(t, "a.txt", parts[3])
	assert.NotEqual(t, a, b)

	_, err = PathFor(PathTempUpload, "", "", "a.txt")
	assert.Error(t, err)
}

func TestValidateCanonicalPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		tenant   string
		fileName string
		wantErr  bool
	}{
		{name: "valid", path: "tenants/t1/docs/d1/a.txt", tenant: "t1", fileName: "a.txt"},
		{name: "valid without name check", path: "tenants/t1/docs/d1/a.txt", tenant: "t1"},
		{name: "other tenant", path: "tenants/t2/docs/d1/a.txt", tenant: "t1", wantErr: true},
		{name: "other name", path: "tenants/t1/docs/d1/b.txt", tenant: "t1", fileName: "a.txt", wantErr: true},
		{name: "preview is not canonical", path: "tenants/t1/previews/d1/a.txt", tenant: "t1", wantErr: true},
		{name: "too many segments", path: "tenants/t1/docs/d1/x/a.txt", tenant: "t1", wantErr: true},
		{name: "dot dot", path: "tenants/t1/docs/../a.txt", tenant: "t1", wantErr: true},
		{name: "temp upload", path: "tmp/uploads/abc/a.txt", tenant: "t1", wantErr: true},
		{name: "empty tenant arg", path: "tenants/t1/docs/d1/a.txt", tenant: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCanonicalPath(tt.path, tt.tenant, tt.fileName)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var pe *PathError
			assert.True(t, errors.As(err, &pe))
			assert.True(t, errors.Is(err, ErrInvalidPath))
		})
	}
}

func TestValidateCanonicalPath_AcceptsPathFor(t *testing.T) {
	p, err := PathFor(PathDocument, "acme", "0f8c", "Q3 report.pdf")
	require.NoError(t, err)
	assert.NoError(t, ValidateCanonicalPath(p, "acme", "Q3 report.pdf"))
}

func TestRetryPolicy_Delays(t *testing.T) {
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, DefaultRetryPolicy.Delays())
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, RetryPolicy{}.Delays())
	assert.Empty(t, RetryPolicy{MaxAttempts: 1, InitialInterval: time.Second}.Delays())
}
