package mocks

import (
	"context"
	"io"

	"docvault/internal/model"
	"docvault/internal/quota"
	"docvault/internal/service"
	"docvault/internal/storage"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, tenantID string, r io.Reader, name, contentType string, size int64) (*model.Document, error) {
	args := m.Called(ctx, tenantID, r, name, contentType, size)
	return document(args)
}

func (m *MockDocumentService) PrepareUpload(ctx context.Context, tenantID, name, contentType string, size int64) (*service.PreparedUpload, error) {
	args := m.Called(ctx, tenantID, name, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PreparedUpload), args.Error(1)
}

func (m *MockDocumentService) CommitUpload(ctx context.Context, tenantID, documentID, name string) (*model.Document, error) {
	args := m.Called(ctx, tenantID, documentID, name)
	return document(args)
}

func (m *MockDocumentService) Rename(ctx context.Context, tenantID, id, newName string) (*model.Document, error) {
	args := m.Called(ctx, tenantID, id, newName)
	return document(args)
}

func (m *MockDocumentService) ReplaceContent(ctx context.Context, tenantID, id string, r io.Reader, contentType string, size int64) (*model.Document, error) {
	args := m.Called(ctx, tenantID, id, r, contentType, size)
	return document(args)
}

func (m *MockDocumentService) Trash(ctx context.Context, tenantID, id string) (*model.Document, error) {
	args := m.Called(ctx, tenantID, id)
	return document(args)
}

func (m *MockDocumentService) Restore(ctx context.Context, tenantID, id string) (*model.Document, error) {
	args := m.Called(ctx, tenantID, id)
	return document(args)
}

func (m *MockDocumentService) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockDocumentService) Get(ctx context.Context, tenantID, id string) (*model.Document, error) {
	args := m.Called(ctx, tenantID, id)
	return document(args)
}

func (m *MockDocumentService) List(ctx context.Context, tenantID string, status model.DocumentStatus, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, tenantID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) DownloadGrant(ctx context.Context, tenantID, id string) (storage.Grant, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Get(0).(storage.Grant), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, tenantID, id string, sink io.Writer) (*model.Document, error) {
	args := m.Called(ctx, tenantID, id, sink)
	if f, ok := args.Get(0).(func(io.Writer) *model.Document); ok {
		return f(sink), args.Error(1)
	}
	return document(args)
}

func (m *MockDocumentService) QuotaSummary(ctx context.Context, tenantID string) (quota.Summary, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(quota.Summary), args.Error(1)
}

func (m *MockDocumentService) QueueStats(ctx context.Context) (model.QueueStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.QueueStats), args.Error(1)
}

func document(args mock.Arguments) (*model.Document, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

var _ service.DocumentService = (*MockDocumentService)(nil)
