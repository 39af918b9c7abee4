// Package stream отдает готовый файл видео клиенту.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/video-downloader/internal/http/middlewarectx"
	"github.com/magabrotheeeer/video-downloader/internal/http/response"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/models"
	services "github.com/magabrotheeeer/video-downloader/internal/services/video"
)

// Service описывает открытие файла готового задания.
type Service interface {
	Open(ctx context.Context, jobID string, requester models.Requester) (*services.Download, error)
}

// Handler обрабатывает GET /videos/{id}/download.
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
// @Summary Скачать видео
// @Description Отдает файл завершенного задания. Поддерживает Range-запросы.
// @Tags Videos
// @Produce  octet-stream
// @Param id path string true "ID задания"
// @Success 200 {file} file "Файл видео"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Нет доступа"
// @Failure 404 {object} response.ErrorResponse "Задание не найдено"
// @Failure 409 {object} response.ErrorResponse "Видео еще не готово"
// @Failure 410 {object} response.ErrorResponse "Файл удален"
// @Router /videos/{id}/download [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.stream"

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

	dl, err := h.service.Open(r.Context(), jobID, requester)
	if err != nil {
		log.Warn("failed to open video", sl.JobID(jobID), sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}
	defer dl.File.Close()

	info, err := dl.File.Stat()
	if err != nil {
		log.Error("failed to stat video file", sl.JobID(jobID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.MsgInternal))
		return
	}

	w.Header().Set("Content-Type", dl.File.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(dl.File.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(dl.Filename)))

	log.Info("streaming video", sl.JobID(jobID), slog.Int64("size", dl.File.Size))
	http.ServeContent(w, r, dl.Filename, info.ModTime(), dl.File)
}
