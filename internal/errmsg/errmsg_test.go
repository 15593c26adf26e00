package errmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_AllKindsRegistered(t *testing.T) {
	r := Default()

	kinds := []Kind{
		KindNotFound, KindInvalidInput, KindInvalidPath, KindInvalidState,
		KindStorageQuotaExceeded, KindDocumentQuotaExceeded, KindTempUnavailable,
		KindAuthFailure, KindUnauthenticated, KindInternal,
	}
	for _, k := range kinds {
		e, ok := r.entries[k]
		require.True(t, ok, "kind %s missing", k)
		assert.NotEmpty(t, e.Code)
		assert.NotEmpty(t, e.Hint, "kind %s needs a remediation hint", k)
	}
	assert.True(t, r.Lookup(KindTempUnavailable).Retryable)
	assert.False(t, r.Lookup(KindAuthFailure).Retryable)
}

func TestRender_Deterministic(t *testing.T) {
	r := Default()
	args := Args{"overage": "200 MB", "used": "600 MB", "limit": "1.0 GiB"}

	first := r.Render(KindStorageQuotaExceeded, 0, args)
	again := r.Render(KindStorageQuotaExceeded, 0, args)
	other := r.Render(KindStorageQuotaExceeded, 1, args)

	assert.Equal(t, first, again)
	assert.Equal(t, "STORAGE_QUOTA_EXCEEDED", first.Code)
	assert.Equal(t, 413, first.Status)
	assert.Equal(t, "this upload needs 200 MB more than your remaining space", first.Message)
	assert.Equal(t, "free up 200 MB and retry, or upgrade your plan", first.Hint)
	assert.Equal(t, "not enough storage left: 600 MB of 1.0 GiB used", other.Message)
}

func TestRender_SeedWraps(t *testing.T) {
	r := Default()
	n := uint64(len(r.Lookup(KindStorageQuotaExceeded).Messages))

	assert.Equal(t,
		r.Render(KindStorageQuotaExceeded, 1, nil).Message,
		r.Render(KindStorageQuotaExceeded, 1+n, nil).Message)
}

func TestLookup_UnknownFallsBackToInternal(t *testing.T) {
	r := Default()
	m := r.Render(Kind("nope"), 3, nil)

	assert.Equal(t, "INTERNAL_ERROR", m.Code)
	assert.Equal(t, 500, m.Status)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load([]byte("internal: {code: X, status: 500}"))
	assert.Error(t, err)

	_, err = Load([]byte("not_found: {code: NF, status: 404, messages: [gone]}"))
	assert.Error(t, err)

	_, err = Load([]byte(":::"))
	assert.Error(t, err)
}
