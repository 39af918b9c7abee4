// Package list возвращает задания текущего пользователя.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/video-downloader/internal/http/middlewarectx"
	"github.com/magabrotheeeer/video-downloader/internal/http/response"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Service описывает чтение списка заданий.
type Service interface {
	List(ctx context.Context, userUID string) ([]*models.Job, error)
}

// Handler обрабатывает GET /videos.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Мои загрузки
// @Description Возвращает задания пользователя, новые первыми.
// @Tags Videos
// @Produce  json
// @Success 200 {object} response.Response "Список заданий"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /videos [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	requester, ok := middlewarectx.RequesterFrom(r.Context())
	if !ok {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	jobs, err := h.service.List(r.Context(), requester.UserUID)
	if err != nil {
		log.Error("failed to list jobs", sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}

	views := make([]models.JobStatusView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.StatusView())
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"jobs": views,
	}))
}
