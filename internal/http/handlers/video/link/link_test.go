package link

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/video-downloader/internal/http/middlewarectx"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ArchiveLink(ctx context.Context, jobID string, requester models.Requester) (string, error) {
	args := m.Called(ctx, jobID, requester)
	return args.String(0), args.Error(1)
}

func TestLinkHandler(t *testing.T) {
	const jobID = "0b7f2c84-57a1-4f7e-9d8a-3c1e5f6a7b8c"
	owner := models.Requester{UserUID: "uid-1", Role: models.RoleUser}

	tests := []struct {
		name     string
		link     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "presigned", link: "https://s3.local/bucket/uid-1/x.mp4?X-Amz-Signature=abc", wantCode: http.StatusOK, wantBody: "X-Amz-Signature"},
		{name: "no archive", err: models.ErrNotReady, wantCode: http.StatusConflict, wantBody: models.ErrNotReady.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("ArchiveLink", mock.Anything, jobID, owner).Return(tt.link, tt.err)

			req := httptest.NewRequest(http.MethodGet, "/videos/"+jobID+"/link", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", jobID)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			req = req.WithContext(middlewarectx.WithRequester(ctx, owner))

			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
