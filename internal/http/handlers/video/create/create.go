// Package create принимает запрос на загрузку видео и ставит задание в очередь.
//
// Ответ 202 возвращается сразу после записи задания, сама загрузка идет в воркере.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/video-downloader/internal/http/middlewarectx"
	"github.com/magabrotheeeer/video-downloader/internal/http/response"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Service описывает постановку задания на загрузку.
type Service interface {
	RequestDownload(ctx context.Context, userUID string, req models.DownloadRequest) (string, error)
}

// Handler обрабатывает POST /videos/download.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис заданий
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Запросить загрузку видео
// @Description Создает задание на загрузку с учетом дневной квоты тарифа. Возвращает идентификатор задания.
// @Tags Videos
// @Accept  json
// @Produce  json
// @Param request body models.DownloadRequest true "Ссылка, формат и заголовок"
// @Success 202 {object} response.Response "Задание принято"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ссылка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Дневной лимит исчерпан"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /videos/download [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.create"

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

	var req models.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	jobID, err := h.service.RequestDownload(r.Context(), requester.UserUID, req)
	if err != nil {
		log.Warn("download request rejected", sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}

	log.Info("download job accepted", sl.JobID(jobID))
	w.WriteHeader(http.StatusAccepted)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"job_id": jobID,
	}))
}
