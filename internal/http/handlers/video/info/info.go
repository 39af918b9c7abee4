// Package info отдает метаданные видео и список доступных форматов.
package info

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/video-downloader/internal/http/response"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Service описывает получение метаданных.
type Service interface {
	Info(ctx context.Context, url string) (*models.VideoInfo, error)
}

// Handler обрабатывает POST /videos/info.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
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
// @Summary Метаданные видео
// @Description Возвращает заголовок, превью, длительность и форматы видео по ссылке.
// @Tags Videos
// @Accept  json
// @Produce  json
// @Param request body models.InfoRequest true "Ссылка на видео"
// @Success 200 {object} response.Response "Метаданные"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ссылка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка извлечения"
// @Router /videos/info [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.info"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.InfoRequest
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

	videoInfo, err := h.service.Info(r.Context(), req.URL)
	if err != nil {
		log.Error("failed to get video info", slog.String("url", req.URL), sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}

	log.Info("video info fetched", slog.Int("formats", len(videoInfo.Formats)))
	render.JSON(w, r, response.StatusOKWithData(videoInfo))
}
