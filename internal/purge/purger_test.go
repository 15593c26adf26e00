package purge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
	"docvault/internal/metrics"
	"docvault/internal/repository/memory"
	"docvault/internal/storage"
)

type mockDeleter struct {
	mock.Mock
}

func (m *mockDeleter) Delete(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func newPurger(t *testing.T, store Deleter, now *time.Time) (*Purger, *memory.DeletionMemory, *metrics.Metrics) {
	t.Helper()
	repo := memory.NewDeletionMemory()
	m := metrics.New(nil)
	cfg := config.PurgeConfig{
		PollInterval:   10 * time.Millisecond,
		BatchSize:      10,
		AlertAttempts:  3,
		InitialBackoff: time.Second,
		MaxBackoff:     4 * time.Second,
	}
	return New(repo, store, cfg, m, zerolog.Nop(), func() time.Time { return *now }), repo, m
}

func TestPurger_DeletesScheduledObjects(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	backend := storage.NewMemory(nil)
	store := storage.NewObjectStore(backend, storage.Options{})
	p, repo, m := newPurger(t, store, &now)
	ctx := context.Background()

	path := "tenants/t1/docs/d1/a.txt"
	_, err := store.UploadBytes(ctx, []byte("hello"), path, "text/plain")
	require.NoError(t, err)

	d, err := p.Schedule(ctx, "t1", "d1", path)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PendingDeletions))

	res, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Deleted: 1}, res)

	exists, err := store.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, exists)

	got, ok := repo.Get(d.ID)
	require.True(t, ok)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.PendingDeletions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DeletionOutcomes.WithLabelValues("deleted")))

	// Completed deletions are not attempted again.
	res, err = p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestPurger_MissingObjectCountsAsDone(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := new(mockDeleter)
	store.On("Delete", mock.Anything, "tenants/t1/docs/d1/a.txt").
		Return(&storage.Error{Op: "delete", Kind: storage.ErrNotFound}).Once()
	p, repo, _ := newPurger(t, store, &now)
	ctx := context.Background()

	d, err := p.Schedule(ctx, "t1", "d1", "tenants/t1/docs/d1/a.txt")
	require.NoError(t, err)
	res, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	got, _ := repo.Get(d.ID)
	assert.NotNil(t, got.CompletedAt)
	store.AssertExpectations(t)
}

func TestPurger_RetriesWithBackoffUntilDeleted(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := new(mockDeleter)
	unavailable := &storage.Error{Op: "delete", Kind: storage.ErrTempUnavailable, Err: errors.New("connection reset")}
	store.On("Delete", mock.Anything, "p").Return(unavailable).Times(4)
	p, repo, m := newPurger(t, store, &now)
	ctx := context.Background()

	d, err := p.Schedule(ctx, "t1", "d1", "p")
	require.NoError(t, err)

	for attempt, wait := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second} {
		res, err := p.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed, "attempt %d", attempt+1)

		got, _ := repo.Get(d.ID)
		assert.Equal(t, attempt+1, got.Attempts)
		assert.Equal(t, now.Add(wait), got.NextAttemptAt)
		assert.Contains(t, got.LastError, "temporarily unavailable")

		// Not due before the backoff elapses.
		res, err = p.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, Result{}, res)
		now = now.Add(wait)
	}

	store.On("Delete", mock.Anything, "p").Return(nil).Once()
	res, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	got, _ := repo.Get(d.ID)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, 5, got.Attempts)
	assert.Equal(t, float64(4), testutil.ToFloat64(m.DeletionOutcomes.WithLabelValues("failed")))
	store.AssertExpectations(t)
}

func TestPurger_Backoff(t *testing.T) {
	now := time.Now()
	p, _, _ := newPurger(t, new(mockDeleter), &now)

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, 4 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Backoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestPurger_RunStopsOnCancel(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := new(mockDeleter)
	store.On("Delete", mock.Anything, "p").Return(nil)
	p, repo, _ := newPurger(t, store, &now)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := p.Schedule(ctx, "t1", "d1", "p")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		n, _ := repo.CountPending(context.Background())
		return n == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
