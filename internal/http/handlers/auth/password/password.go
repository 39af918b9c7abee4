// Package password реализует смену пароля текущего пользователя.
package password

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

// Service описывает смену пароля.
type Service interface {
	UpdatePassword(ctx context.Context, userUID, currentPassword, newPassword string) error
}

// Handler обрабатывает PUT /auth/password.
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
// @Summary Сменить пароль
// @Description Проверяет текущий пароль и сохраняет новый.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.UpdatePasswordRequest true "Текущий и новый пароль"
// @Success 200 {object} response.Response "Пароль изменен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверный текущий пароль"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/password [put]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.password"

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

	var req models.UpdatePasswordRequest
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

	if err := h.service.UpdatePassword(r.Context(), requester.UserUID, req.CurrentPassword, req.NewPassword); err != nil {
		log.Warn("failed to update password", sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}

	log.Info("password updated", slog.String("user_uid", requester.UserUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "password updated",
	}))
}
