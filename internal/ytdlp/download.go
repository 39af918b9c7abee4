package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Download скачивает видео в каталог destDir, имя файла строится из token.
// Путь к итоговому файлу сообщает сам инструмент, каталог не сканируется.
func (c *Client) Download(ctx context.Context, url, formatID, destDir, token string) (string, error) {
	const op = "ytdlp.Download"

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	template := filepath.Join(destDir, token+".%(ext)s")

	out, err := c.run(ctx, op, c.timeout,
		url,
		"-f", formatID,
		"-o", template,
		"--no-playlist",
		"--no-simulate",
		"--print", "after_move:filepath",
	)
	if err != nil {
		return "", err
	}

	path := lastLine(string(out))
	if path == "" {
		return "", fmt.Errorf("%s: %w", op, models.ErrFileNotFound)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(destDir, filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w: %s", op, models.ErrFileNotFound, path)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return path, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
