// Package link выдает временную ссылку на архивную копию файла.
package link

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

// Service описывает получение подписанной ссылки.
type Service interface {
	ArchiveLink(ctx context.Context, jobID string, requester models.Requester) (string, error)
}

// Handler обрабатывает GET /videos/{id}/link.
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
// @Summary Ссылка на архив
// @Description Возвращает подписанную ссылку на копию файла в объектном хранилище (premium).
// @Tags Videos
// @Produce  json
// @Param id path string true "ID задания"
// @Success 200 {object} response.Response "Ссылка"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 403 {object} response.ErrorResponse "Нет доступа"
// @Failure 404 {object} response.ErrorResponse "Задание не найдено"
// @Failure 409 {object} response.ErrorResponse "Архивной копии нет"
// @Router /videos/{id}/link [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.link"

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

	link, err := h.service.ArchiveLink(r.Context(), jobID, requester)
	if err != nil {
		log.Warn("failed to presign link", sl.JobID(jobID), sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"url": link,
	}))
}
