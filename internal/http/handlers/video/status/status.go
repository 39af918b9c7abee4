// Package status отдает текущее состояние задания на загрузку.
package status

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

// Service описывает чтение задания с проверкой доступа.
type Service interface {
	Status(ctx context.Context, jobID string, requester models.Requester) (*models.Job, error)
}

// Handler обрабатывает GET /videos/{id}/status.
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
// @Summary Статус задания
// @Description Возвращает статус, ошибку и срок хранения задания. Доступно владельцу и администратору.
// @Tags Videos
// @Produce  json
// @Param id path string true "ID задания"
// @Success 200 {object} response.Response "Статус задания"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Нет доступа"
// @Failure 404 {object} response.ErrorResponse "Задание не найдено"
// @Router /videos/{id}/status [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.status"

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
		log.Warn("invalid job id", slog.String("id", jobID))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return
	}

	job, err := h.service.Status(r.Context(), jobID, requester)
	if err != nil {
		log.Warn("failed to read job status", sl.JobID(jobID), sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(job.StatusView()))
}
