package password

import (
	"bytes"
	"context"
	"fmt"
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

func (m *MockService) UpdatePassword(ctx context.Context, userUID, currentPassword, newPassword string) error {
	return m.Called(ctx, userUID, currentPassword, newPassword).Error(0)
}

func TestPasswordHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name      string
		body      string
		setupMock func(*MockService)
		wantCode  int
	}{
		{
			name: "updated",
			body: `{"current_password":"old-secret","new_password":"new-secret"}`,
			setupMock: func(m *MockService) {
				m.On("UpdatePassword", mock.Anything, "uid-1", "old-secret", "new-secret").Return(nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name:      "new password too short",
			body:      `{"current_password":"old-secret","new_password":"123"}`,
			setupMock: func(_ *MockService) {},
			wantCode:  http.StatusUnprocessableEntity,
		},
		{
			name: "wrong current password",
			body: `{"current_password":"bad","new_password":"new-secret"}`,
			setupMock: func(m *MockService) {
				m.On("UpdatePassword", mock.Anything, "uid-1", "bad", "new-secret").
					Return(fmt.Errorf("services.UpdatePassword: %w", models.ErrInvalidCredentials))
			},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPut, "/auth/password", bytes.NewBufferString(tt.body))
			req = req.WithContext(middlewarectx.WithRequester(req.Context(), models.Requester{UserUID: "uid-1"}))
			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
