package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

const infoJSON = `{
  "title": "Test video",
  "thumbnail": "https://img.example.com/t.jpg",
  "duration": 3725,
  "formats": [
    {"format_id": "140", "ext": "m4a", "resolution": "audio only", "vcodec": "none", "acodec": "mp4a", "filesize": 1048576},
    {"format_id": "18", "format_note": "360p", "ext": "mp4", "width": 640, "height": 360, "vcodec": "avc1", "acodec": "mp4a", "filesize": 5242880},
    {"format_id": "22", "format_note": "720p", "ext": "mp4", "resolution": "1280x720", "height": 720, "vcodec": "avc1", "acodec": "mp4a"},
    {"format_id": "sb0", "ext": "mhtml", "vcodec": "none"}
  ]
}`

// fakeTool пишет исполняемый скрипт, подменяющий yt-dlp.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestClient_GetInfo(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "info.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(infoJSON), 0o600))

	client := New(fakeTool(t, `cat "`+jsonPath+`"`), time.Minute, time.Minute)

	info, err := client.GetInfo(context.Background(), "https://example.com/watch?v=1")
	require.NoError(t, err)

	assert.Equal(t, "Test video", info.Title)
	assert.Equal(t, "https://img.example.com/t.jpg", info.Thumbnail)
	assert.Equal(t, "01:02:05", info.Duration)
	require.Len(t, info.Formats, 2)

	assert.Equal(t, "18", info.Formats[0].FormatID)
	assert.Equal(t, "640x360", info.Formats[0].Resolution)
	assert.Equal(t, "5.00 MB", info.Formats[0].Filesize)
	assert.Equal(t, "22", info.Formats[1].FormatID)
	assert.Equal(t, "Unknown", info.Formats[1].Filesize)

	for _, f := range info.Formats {
		assert.NotEqual(t, "none", f.VCodec)
		assert.NotEqual(t, "x", f.Resolution)
	}
}

func TestClient_GetInfo_Failures(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		timeout  time.Duration
		wantCode int
		wantMsg  []string
	}{
		{
			name:     "non-zero exit",
			script:   "echo 'ERROR: Unsupported URL' >&2\nexit 1",
			timeout:  time.Minute,
			wantCode: 1,
			wantMsg:  []string{"exited with code 1", "Unsupported URL"},
		},
		{
			name:    "invalid json",
			script:  "echo 'not json'",
			timeout: time.Minute,
		},
		{
			name:     "timeout",
			script:   "exec sleep 5",
			timeout:  100 * time.Millisecond,
			wantCode: -1,
			wantMsg:  []string{"timed out", "deadline exceeded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(fakeTool(t, tt.script), time.Minute, tt.timeout)

			info, err := client.GetInfo(context.Background(), "https://example.com/bad")
			assert.Nil(t, info)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrExtraction)

			var extErr *ExtractionError
			require.True(t, errors.As(err, &extErr))
			assert.Equal(t, tt.wantCode, extErr.ExitCode)
			for _, msg := range tt.wantMsg {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}

const downloadScript = `out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift;;
  esac
  shift
done
file=$(echo "$out" | sed 's/%(ext)s/mp4/')
: > "$file"
echo "$file"
`

func TestClient_Download(t *testing.T) {
	client := New(fakeTool(t, downloadScript), time.Minute, time.Minute)
	dest := filepath.Join(t.TempDir(), "user-1")

	path, err := client.Download(context.Background(), "https://example.com/v", "18", dest, "job-123")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "job-123.mp4"), path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestClient_Download_ReportedFileMissing(t *testing.T) {
	client := New(fakeTool(t, `echo "/nonexistent/dir/job.mp4"`), time.Minute, time.Minute)

	path, err := client.Download(context.Background(), "https://example.com/v", "18", t.TempDir(), "job")
	assert.Empty(t, path)
	assert.ErrorIs(t, err, models.ErrFileNotFound)
}

func TestClient_Download_ToolFailure(t *testing.T) {
	client := New(fakeTool(t, "echo 'ERROR: Requested format is not available' >&2\nexit 2"), time.Minute, time.Minute)

	_, err := client.Download(context.Background(), "https://example.com/v", "999", t.TempDir(), "job")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrExtraction)
	assert.Contains(t, err.Error(), "exited with code 2")
}

func TestClient_Download_Timeout(t *testing.T) {
	client := New(fakeTool(t, "exec sleep 5"), 100*time.Millisecond, time.Minute)

	_, err := client.Download(context.Background(), "https://example.com/v", "18", t.TempDir(), "job")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrExtraction)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
	assert.Contains(t, err.Error(), "deadline exceeded")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "Unknown"},
		{59, "00:59"},
		{61, "01:01"},
		{3600, "01:00:00"},
		{3725.7, "01:02:05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds))
	}
}

func TestFormatFilesize(t *testing.T) {
	tests := []struct {
		bytes float64
		want  string
	}{
		{0, "Unknown"},
		{512, "512.00 B"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
		{2048 * 1024 * 1024 * 1024, "2048.00 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFilesize(tt.bytes))
	}
}

func TestSelectFormat(t *testing.T) {
	formats := []models.Format{
		{FormatID: "18", Height: 360},
		{FormatID: "22", Height: 720},
		{FormatID: "137", Height: 1080},
		{FormatID: "135", Height: 480},
	}

	tests := []struct {
		name    string
		policy  string
		formats []models.Format
		want    string
		wantErr error
	}{
		{name: "first policy", policy: PolicyFirst, formats: formats, want: "18"},
		{name: "empty policy defaults to first", policy: "", formats: formats, want: "18"},
		{name: "best policy", policy: PolicyBest, formats: formats, want: "137"},
		{name: "no formats", policy: PolicyFirst, formats: nil, wantErr: models.ErrNoFormatAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectFormat(tt.policy, tt.formats)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := SelectFormat("random", formats)
	assert.Error(t, err)
}
