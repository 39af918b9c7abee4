package list

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/video-downloader/internal/http/middlewarectx"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, userUID string) ([]*models.Job, error) {
	args := m.Called(ctx, userUID)
	jobs, _ := args.Get(0).([]*models.Job)
	return jobs, args.Error(1)
}

func TestListHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("returns jobs without internal fields", func(t *testing.T) {
		msg := "no formats available for this video"
		svc := new(MockService)
		svc.On("List", mock.Anything, "uid-1").Return([]*models.Job{
			{ID: "j1", Status: models.JobPending, Formats: []models.Format{{FormatID: "18"}}},
			{ID: "j2", Status: models.JobFailed, Error: &msg},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/videos", nil)
		req = req.WithContext(middlewarectx.WithRequester(req.Context(), models.Requester{UserUID: "uid-1"}))
		rec := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":"j2"`)
		assert.Contains(t, rec.Body.String(), msg)
		assert.NotContains(t, rec.Body.String(), "formats")
	})

	t.Run("no user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		New(logger, new(MockService)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
