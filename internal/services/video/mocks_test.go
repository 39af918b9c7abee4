package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateJobWithinQuota(ctx context.Context, job models.Job, since time.Time,
	allow func(tier models.Tier, jobsToday int) bool) (*models.Job, error) {
	args := m.Called(ctx, job, since, allow)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockRepository) ListJobsByUser(ctx context.Context, userUID string) ([]*models.Job, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Job), args.Error(1)
}

func (m *MockRepository) MarkProcessing(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) SaveJobInfo(ctx context.Context, id string, info *models.VideoInfo, formatID string) error {
	args := m.Called(ctx, id, info, formatID)
	return args.Error(0)
}

func (m *MockRepository) CompleteJob(ctx context.Context, id, userUID, path string, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, id, userUID, path, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FailJob(ctx context.Context, id, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *MockRepository) SetObjectKey(ctx context.Context, id, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

func (m *MockRepository) DeleteJob(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) GetInfo(ctx context.Context, url string) (*models.VideoInfo, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VideoInfo), args.Error(1)
}

func (m *MockExtractor) Download(ctx context.Context, url, formatID, destDir, token string) (string, error) {
	args := m.Called(ctx, url, formatID, destDir, token)
	return args.String(0), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetJob(ctx context.Context, jobID string) (*models.Job, bool, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Job), args.Bool(1), args.Error(2)
}

func (m *MockCache) SetJob(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockCache) InvalidateJob(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Upload(ctx context.Context, key, path, contentType string) error {
	args := m.Called(ctx, key, path, contentType)
	return args.Error(0)
}

func (m *MockArchive) PresignDownload(ctx context.Context, key, filename string) (string, error) {
	args := m.Called(ctx, key, filename)
	return args.String(0), args.Error(1)
}

func (m *MockArchive) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
