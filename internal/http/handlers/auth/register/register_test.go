package register

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, string, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*models.User)
	return user, args.String(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	valid := models.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "secret123"}

	tests := []struct {
		name           string
		requestBody    any
		setupMock      func(*MockService)
		wantStatusCode int
		wantStatus     string
		wantError      string
	}{
		{
			name:        "valid registration",
			requestBody: valid,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, valid).
					Return(&models.User{UUID: "uid-1", Email: valid.Email, Role: models.RoleUser, Tier: models.TierFree}, "jwt", nil)
			},
			wantStatusCode: http.StatusCreated,
			wantStatus:     "OK",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			setupMock:      func(_ *MockService) {},
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "invalid request body",
		},
		{
			name:           "short password",
			requestBody:    models.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "123"},
			setupMock:      func(_ *MockService) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantStatus:     "Error",
			wantError:      "field Password must be at least 6 characters",
		},
		{
			name:        "email taken",
			requestBody: valid,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, valid).
					Return(nil, "", fmt.Errorf("services.Register: %w", models.ErrEmailTaken))
			},
			wantStatusCode: http.StatusConflict,
			wantStatus:     "Error",
			wantError:      models.ErrEmailTaken.Error(),
		},
		{
			name:        "storage failure",
			requestBody: valid,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, valid).Return(nil, "", errors.New("db down"))
			},
			wantStatusCode: http.StatusInternalServerError,
			wantStatus:     "Error",
			wantError:      "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			handler := New(newNoopLogger(), svc)

			var body []byte
			if s, ok := tt.requestBody.(string); ok {
				body = []byte(s)
			} else {
				body, _ = json.Marshal(tt.requestBody)
			}
			req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp["status"])
			if tt.wantError != "" {
				assert.Contains(t, resp["error"], tt.wantError)
			} else {
				data := resp["data"].(map[string]any)
				assert.Equal(t, "jwt", data["token"])
			}
			svc.AssertExpectations(t)
		})
	}
}
