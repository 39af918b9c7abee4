// Package remove удаляет задание вместе с файлом.
package remove

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/video-downloader/internal/http/middlewarectx"
	"github.com/magabrotheeeer/video-downloader/internal/http/response"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Service описывает удаление задания.
type Service interface {
	Delete(ctx context.Context, jobID string, requester models.Requester) error
}

// Handler обрабатывает DELETE /videos/{id}.
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
// @Summary Удалить загрузку
// @Description Удаляет задание, локальный файл и архивную копию. Доступно владельцу и администратору.
// @Tags Videos
// @Produce  json
// @Param id path string true "ID задания"
// @Success 200 {object} response.Response "Задание удалено"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 403 {object} response.ErrorResponse "Нет доступа"
// @Failure 404 {object} response.ErrorResponse "Задание не найдено"
// @Router /videos/{id} [delete]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.remove"

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

	jobID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(jobID); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return
	}

	if err := h.service.Delete(r.Context(), jobID, requester); err != nil {
		log.Warn("failed to delete job", sl.JobID(jobID), sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}

	log.Info("job deleted", sl.JobID(jobID), slog.String("by", requester.UserUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"job_id":  jobID,
		"deleted": true,
	}))
}
