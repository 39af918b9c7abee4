// Package health отвечает на проверки живости сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/video-downloader/internal/http/response"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
)

// Check проверка одной зависимости, например Postgres или Redis.
type Check func(ctx context.Context) error

// Handler обрабатывает GET /health.
type Handler struct {
	log     *slog.Logger
	checks  map[string]Check
	timeout time.Duration
}

// New создает Handler. Без проверок всегда отвечает ok.
func New(log *slog.Logger, checks map[string]Check) *Handler {
	return &Handler{
		log:     log,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

// ServeHTTP godoc
// @Summary Проверка состояния
// @Description Проверяет доступность зависимостей сервиса.
// @Tags Health
// @Produce  json
// @Success 200 {object} response.Response "Сервис работает"
// @Failure 503 {object} response.Response "Зависимость недоступна"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Error("health check failed", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}

	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{
			Status: response.StatusError,
			Error:  "dependency unavailable",
			Data:   map[string]any{"status": "degraded", "dependencies": status},
		})
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status":       "ok",
		"dependencies": status,
	}))
}
