package list

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*models.User)
	return users, args.Error(1)
}

func TestListHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("lists users", func(t *testing.T) {
		svc := new(MockService)
		svc.On("ListUsers", mock.Anything).Return([]*models.User{{UUID: "a"}, {UUID: "b"}}, nil)

		rec := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"total":2`)
	})

	t.Run("storage error", func(t *testing.T) {
		svc := new(MockService)
		svc.On("ListUsers", mock.Anything).Return(nil, errors.New("db down"))

		rec := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down")
	})
}
