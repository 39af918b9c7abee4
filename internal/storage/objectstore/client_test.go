package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/video-downloader/internal/config"
)

// fakeS3 принимает PUT и DELETE в стиле path-style и запоминает объекты.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	client, err := NewClient(context.Background(), config.ObjectStorage{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "videos",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		LinkTTL:         15 * time.Minute,
	})
	require.NoError(t, err)
	return client, fake
}

func TestClient_UploadAndDelete(t *testing.T) {
	client, fake := newTestClient(t)

	path := filepath.Join(t.TempDir(), "job.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o600))

	require.NoError(t, client.Upload(context.Background(), "user-1/job.mp4", path, "video/mp4"))
	assert.Equal(t, []byte("video-bytes"), fake.objects["videos/user-1/job.mp4"])

	require.NoError(t, client.Delete(context.Background(), "user-1/job.mp4"))
	_, ok := fake.objects["videos/user-1/job.mp4"]
	assert.False(t, ok)
}

func TestClient_PresignDownload(t *testing.T) {
	client, _ := newTestClient(t)

	link, err := client.PresignDownload(context.Background(), "user-1/job.mp4", "My video.mp4")
	require.NoError(t, err)
	assert.Contains(t, link, "/videos/user-1/job.mp4")
	assert.Contains(t, link, "X-Amz-Expires=900")
	assert.Contains(t, link, "response-content-disposition")
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	client, err := NewClient(context.Background(), config.ObjectStorage{Bucket: "videos"})
	assert.Nil(t, client)
	assert.Error(t, err)
}
