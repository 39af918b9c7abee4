package paymentwebhook

import (
	"bytes"
	"context"
	"errors"
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

func (m *MockService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

func TestWebhookHandler(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.deleted"}`)

	tests := []struct {
		name      string
		body      []byte
		signature string
		err       error
		wantCode  int
	}{
		{name: "accepted", body: payload, signature: "t=1,v1=abc", wantCode: http.StatusOK},
		{name: "bad signature", body: payload, signature: "t=1,v1=bad", err: errors.Join(models.ErrSignature, errors.New("no valid signature")), wantCode: http.StatusBadRequest},
		{name: "processing failed", body: payload, signature: "t=1,v1=abc", err: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("HandleWebhook", mock.Anything, tt.body, tt.signature).Return(tt.err)

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(tt.body))
			req.Header.Set(SignatureHeader, tt.signature)
			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotContains(t, rec.Body.String(), "db down")
			svc.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	svc := new(MockService)
	body := strings.Repeat("x", int(MaxBodyBytes)+1)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
}
