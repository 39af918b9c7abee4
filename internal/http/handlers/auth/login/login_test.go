package login

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(1).(*models.User)
	return args.String(0), user, args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		setupMock    func(*MockService)
		wantCode     int
		wantContains string
	}{
		{
			name: "success",
			body: `{"email":"ann@example.com","password":"secret123"}`,
			setupMock: func(m *MockService) {
				m.On("Login", mock.Anything, "ann@example.com", "secret123").
					Return("jwt-token", &models.User{UUID: "uid-1"}, nil)
			},
			wantCode:     http.StatusOK,
			wantContains: `"token":"jwt-token"`,
		},
		{
			name:         "bad json",
			body:         `{"email":`,
			setupMock:    func(_ *MockService) {},
			wantCode:     http.StatusBadRequest,
			wantContains: "invalid request body",
		},
		{
			name:         "missing password",
			body:         `{"email":"ann@example.com"}`,
			setupMock:    func(_ *MockService) {},
			wantCode:     http.StatusUnprocessableEntity,
			wantContains: "field Password is a required field",
		},
		{
			name: "wrong credentials",
			body: `{"email":"ann@example.com","password":"nope"}`,
			setupMock: func(m *MockService) {
				m.On("Login", mock.Anything, "ann@example.com", "nope").
					Return("", nil, fmt.Errorf("services.Login: %w", models.ErrInvalidCredentials))
			},
			wantCode:     http.StatusUnauthorized,
			wantContains: models.ErrInvalidCredentials.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), tt.wantContains),
				"response body should contain %s, got %s", tt.wantContains, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
