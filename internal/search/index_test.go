package search

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	"docvault/internal/storage"
)

func sampleDoc() *model.Document {
	return &model.Document{
		ID:               "doc-1",
		TenantID:         "t1",
		Name:             "a.txt",
		CurrentVersionID: "v1",
		FileSizeBytes:    5,
		ContentType:      "text/plain",
		StoragePath:      "tenants/t1/docs/doc-1/a.txt",
		UpdatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestArtifactIndex_UpsertIsIdempotent(t *testing.T) {
	backend := storage.NewMemory(nil)
	store := storage.NewObjectStore(backend, storage.Options{Logger: zerolog.Nop()})
	idx := NewArtifactIndex(store)
	ctx := context.Background()

	e := EntryFor(sampleDoc())
	require.NoError(t, idx.Upsert(ctx, e))
	first, err := store.ReadAll(ctx, "tenants/t1/metadata/doc-1.json")
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, e))
	second, err := store.ReadAll(ctx, "tenants/t1/metadata/doc-1.json")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, backend.Keys(), 1)

	got, ok, err := idx.Get(ctx, "t1", "doc-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, e, got)
}

func TestArtifactIndex_Remove(t *testing.T) {
	backend := storage.NewMemory(nil)
	store := storage.NewObjectStore(backend, storage.Options{Logger: zerolog.Nop()})
	idx := NewArtifactIndex(store)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, EntryFor(sampleDoc())))
	require.NoError(t, idx.Remove(ctx, "t1", "doc-1"))
	require.NoError(t, idx.Remove(ctx, "t1", "doc-1"))

	_, ok, err := idx.Get(ctx, "t1", "doc-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, backend.Keys())
}

func TestMemoryIndex(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	e := EntryFor(sampleDoc())

	require.NoError(t, idx.Upsert(ctx, e))
	require.NoError(t, idx.Upsert(ctx, e))
	assert.Equal(t, 1, idx.Len())

	e.VersionID = "v2"
	require.NoError(t, idx.Upsert(ctx, e))
	got, ok, _ := idx.Get(ctx, "t1", "doc-1")
	assert.True(t, ok)
	assert.Equal(t, "v2", got.VersionID)

	require.NoError(t, idx.Remove(ctx, "t1", "doc-1"))
	assert.Equal(t, 0, idx.Len())
}
