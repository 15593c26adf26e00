package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"docvault/internal/config"
	"docvault/internal/metrics"
	"docvault/internal/model"
	"docvault/internal/quota"
	"docvault/internal/reindex"
	"docvault/internal/repository"
	"docvault/internal/repository/memory"
	repoMocks "docvault/internal/repository/mocks"
	"docvault/internal/storage"
	storeMocks "docvault/internal/storage/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testQuota = config.QuotaConfig{
	DefaultStorageLimitBytes: 1000,
	DefaultDocumentLimit:     5,
	DefaultTier:              "free",
}

type mockedDeps struct {
	backend *storeMocks.MockBackend
	repo    *repoMocks.MockDocumentRepository
	quotas  *memory.QuotaMemory
	jobs    *memory.JobMemory
	svc     DocumentService
}

func newMocked(t *testing.T) *mockedDeps {
	t.Helper()
	m := metrics.New(nil)
	d := &mockedDeps{
		backend: new(storeMocks.MockBackend),
		repo:    new(repoMocks.MockDocumentRepository),
		quotas:  memory.NewQuotaMemory(),
		jobs:    memory.NewJobMemory(),
	}
	store := storage.NewObjectStore(d.backend, storage.Options{
		Retry:   storage.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond},
		Metrics: m,
		Logger:  zerolog.Nop(),
	})
	d.svc = NewDocumentService(Deps{
		Documents: d.repo,
		Ledger:    quota.NewLedger(d.quotas, memory.NewDocumentMemory(), testQuota, m, zerolog.Nop()),
		Store:     store,
		Queue:     reindex.NewQueue(d.jobs, reindex.Options{Metrics: m, Logger: zerolog.Nop()}),
		Deletions: nil,
		Logger:    zerolog.Nop(),
	})
	return d
}

func echoKey(_ context.Context, key string, _ io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
	return storage.ObjectInfo{Key: key, Size: opt.Size, ContentType: opt.ContentType}
}

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		filename    string
		content     string
		size        int64
		setupMocks  func(d *mockedDeps)
		nilReader   bool
		wantErr     error
		wantErrMsg  string
		wantUsed    uint64
		wantPending int
	}{
		{
			name:     "happy path",
			filename: "test.txt",
			content:  "hello world",
			size:     11,
			setupMocks: func(d *mockedDeps) {
				d.backend.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
					return strings.HasPrefix(key, "tenants/t1/docs/") && strings.HasSuffix(key, "/test.txt")
				}), mock.Anything, mock.Anything).Return(echoKey, nil)

				d.repo.On("Create", mock.Anything, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.TenantID == "t1" && doc.Name == "test.txt" && doc.FileSizeBytes == 11 &&
						doc.Status == model.DocumentActive && doc.CurrentVersionID != "" &&
						doc.StoragePath == "tenants/t1/docs/"+doc.ID+"/test.txt"
				})).Return(func(_ context.Context, doc *model.Document) *model.Document { return doc }, nil)
			},
			wantUsed:    11,
			wantPending: 1,
		},
		{
			name:       "validation error - nil reader",
			filename:   "test.txt",
			nilReader:  true,
			setupMocks: func(d *mockedDeps) {},
			wantErr:    ErrReaderNil,
		},
		{
			name:       "validation error - unsafe file name",
			filename:   "../escape.txt",
			content:    "x",
			size:       1,
			setupMocks: func(d *mockedDeps) {},
			wantErr:    storage.ErrInvalidPath,
		},
		{
			name:       "quota exceeded never touches storage",
			filename:   "big.bin",
			content:    strings.Repeat("x", 1001),
			size:       1001,
			setupMocks: func(d *mockedDeps) {},
			wantErr:    quota.ErrQuotaExceeded,
		},
		{
			name:     "storage auth failure releases the reservation",
			filename: "test.txt",
			content:  "hello",
			size:     5,
			setupMocks: func(d *mockedDeps) {
				d.backend.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, fmt.Errorf("%w: access denied", storage.ErrAuthFailure)).Once()
			},
			wantErr: storage.ErrAuthFailure,
		},
		{
			name:     "repository error with successful rollback",
			filename: "test.txt",
			content:  "hello",
			size:     5,
			setupMocks: func(d *mockedDeps) {
				d.backend.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoKey, nil)
				d.repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
				d.backend.On("Delete", mock.Anything, mock.Anything).Return(nil)
			},
			wantErrMsg: "db save failed: db fail",
		},
		{
			name:     "repository error with failed rollback",
			filename: "test.txt",
			content:  "hello",
			size:     5,
			setupMocks: func(d *mockedDeps) {
				d.backend.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoKey, nil)
				d.repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
				d.backend.On("Delete", mock.Anything, mock.Anything).
					Return(fmt.Errorf("%w: delete fail", storage.ErrAuthFailure))
			},
			wantErrMsg: "rollback delete failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newMocked(t)
			tt.setupMocks(d)

			var r io.Reader = strings.NewReader(tt.content)
			if tt.nilReader {
				r = nil
			}
			doc, err := d.svc.Upload(ctx, "t1", r, tt.filename, "text/plain", tt.size)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, doc)
			}

			if q, err := d.quotas.Get(ctx, "t1"); err == nil {
				assert.Equal(t, tt.wantUsed, q.StorageUsedBytes)
				assert.Equal(t, uint64(tt.wantPending), q.DocumentCount)
			}
			st, err := d.jobs.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPending, st.Pending)

			d.backend.AssertExpectations(t)
			d.repo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Upload_QuotaDenialSkipsStore(t *testing.T) {
	d := newMocked(t)

	_, err := d.svc.Upload(context.Background(), "t1", strings.NewReader("x"), "a.txt", "", 5000)

	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, quota.ResourceStorage, exceeded.Resource)
	assert.Equal(t, uint64(4000), exceeded.Overage)
	d.backend.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		status     model.DocumentStatus
		limit      int
		offset     int
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
		checkRes   func(t *testing.T, res *DocumentListResult)
	}{
		{
			name:   "happy path",
			limit:  10,
			offset: 0,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, "t1", model.DocumentActive, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Document]{
						Items: []model.Document{{ID: "1"}, {ID: "2"}},
						Total: 2,
					}, nil)
			},
			checkRes: func(t *testing.T, res *DocumentListResult) {
				assert.Equal(t, 2, len(res.Items))
				assert.Equal(t, 2, res.Total)
			},
		},
		{
			name:   "trash listing",
			status: model.DocumentTrashed,
			limit:  5,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, "t1", model.DocumentTrashed, repository.PageQuery{Limit: 5, Offset: 0}).
					Return(&repository.PageResult[model.Document]{Items: []model.Document{{ID: "3"}}, Total: 1}, nil)
			},
			checkRes: func(t *testing.T, res *DocumentListResult) {
				assert.Equal(t, 1, res.Total)
			},
		},
		{
			name:   "pagination boundary - zero limit uses default",
			limit:  0,
			offset: -1,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, "t1", model.DocumentActive, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Document]{Items: []model.Document{}, Total: 0}, nil)
			},
		},
		{
			name:       "deleted documents are not listable",
			status:     model.DocumentDeleted,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrInvalidStatus,
		},
		{
			name:  "repository error",
			limit: 10,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, "t1", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(Deps{Documents: mRepo, Logger: zerolog.Nop()})

			tt.setupMocks(mRepo)

			res, err := svc.List(ctx, "t1", tt.status, tt.limit, tt.offset)

			if tt.wantErr != nil {
				assert.Error(t, err)
				if errors.Is(tt.wantErr, ErrInvalidStatus) {
					assert.ErrorIs(t, err, ErrInvalidStatus)
				}
			} else {
				assert.NoError(t, err)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		tenant     string
		id         string
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name:   "happy path",
			tenant: "t1",
			id:     "1",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "1").Return(&model.Document{ID: "1", TenantID: "t1", Status: model.DocumentActive}, nil)
			},
		},
		{
			name:       "validation error - empty id",
			tenant:     "t1",
			id:         "",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name:       "validation error - no tenant",
			id:         "1",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrTenantRequired,
		},
		{
			name:   "not found",
			tenant: "t1",
			id:     "2",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "2").Return(nil, fmt.Errorf("find document: %w", repository.ErrNotFound))
			},
			wantErr: ErrNotFound,
		},
		{
			name:   "other tenant's document looks missing",
			tenant: "t2",
			id:     "1",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "1").Return(&model.Document{ID: "1", TenantID: "t1", Status: model.DocumentActive}, nil)
			},
			wantErr: ErrNotFound,
		},
		{
			name:   "deleted document looks missing",
			tenant: "t1",
			id:     "1",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "1").Return(&model.Document{ID: "1", TenantID: "t1", Status: model.DocumentDeleted}, nil)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(Deps{Documents: mRepo, Logger: zerolog.Nop()})

			tt.setupMocks(mRepo)

			doc, err := svc.Get(ctx, tt.tenant, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.id, doc.ID)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationID(ctx))
	assert.Equal(t, "req-1", CorrelationID(WithCorrelationID(ctx, "req-1")))
}
