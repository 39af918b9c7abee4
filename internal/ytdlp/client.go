// Package ytdlp запускает внешний инструмент yt-dlp для получения метаданных
// видео и загрузки файла в выбранном формате.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// ExtractionError ошибка запуска инструмента: ненулевой код выхода,
// таймаут или непригодный вывод. Оборачивает models.ErrExtraction.
type ExtractionError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.ExitCode == -1 && e.Err != nil {
		return fmt.Sprintf("%s: yt-dlp timed out (%v): %s", e.Op, e.Err, e.Stderr)
	}
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s: yt-dlp exited with code %d: %s", e.Op, e.ExitCode, e.Stderr)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Stderr)
}

// Unwrap позволяет errors.Is(err, models.ErrExtraction) и доступ к причине.
func (e *ExtractionError) Unwrap() []error {
	if e.Err != nil {
		return []error{models.ErrExtraction, e.Err}
	}
	return []error{models.ErrExtraction}
}

// Client обёртка над бинарником yt-dlp.
type Client struct {
	binaryPath  string
	timeout     time.Duration
	infoTimeout time.Duration
}

// New создаёт Client. Нулевые таймауты заменяются значениями по умолчанию.
func New(binaryPath string, timeout, infoTimeout time.Duration) *Client {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if infoTimeout <= 0 {
		infoTimeout = time.Minute
	}
	return &Client{
		binaryPath:  binaryPath,
		timeout:     timeout,
		infoTimeout: infoTimeout,
	}
}

func (c *Client) run(ctx context.Context, op string, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	// yt-dlp запускает ffmpeg дочерним процессом
	cmd.WaitDelay = 10 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &ExtractionError{Op: op, ExitCode: -1, Stderr: strings.TrimSpace(stderr.String()), Err: ctxErr}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExtractionError{Op: op, ExitCode: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return nil, &ExtractionError{Op: op, Err: err}
	}
	return stdout.Bytes(), nil
}
