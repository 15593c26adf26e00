package mocks

import (
	"context"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Enqueue(ctx context.Context, job *model.ReindexJob) (*model.ReindexJob, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReindexJob), args.Error(1)
}

func (m *MockJobRepository) Claim(ctx context.Context, now time.Time) (*model.ReindexJob, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReindexJob), args.Error(1)
}

func (m *MockJobRepository) Complete(ctx context.Context, id string, completedAt time.Time, slaViolated bool) error {
	return m.Called(ctx, id, completedAt, slaViolated).Error(0)
}

func (m *MockJobRepository) Fail(ctx context.Context, id string, status model.JobStatus, lastError string, availableAt time.Time) error {
	return m.Called(ctx, id, status, lastError, availableAt).Error(0)
}

func (m *MockJobRepository) RequeueFailed(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *MockJobRepository) ReleaseStale(ctx context.Context, startedBefore time.Time, maxAttempts int) (int, int, error) {
	args := m.Called(ctx, startedBefore, maxAttempts)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockJobRepository) PurgeCompleted(ctx context.Context, completedBefore time.Time) (int, error) {
	args := m.Called(ctx, completedBefore)
	return args.Int(0), args.Error(1)
}

func (m *MockJobRepository) Stats(ctx context.Context) (model.QueueStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.QueueStats), args.Error(1)
}

func (m *MockJobRepository) FindByID(ctx context.Context, id string) (*model.ReindexJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReindexJob), args.Error(1)
}

var _ repository.JobRepository = (*MockJobRepository)(nil)
