// Package me возвращает профиль текущего пользователя.
package me

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

// Service описывает чтение профиля.
type Service interface {
	Profile(ctx context.Context, userUID string) (*models.User, error)
}

// Handler отдает данные авторизованного пользователя.
// Используется и для /auth/me, и для GET /users/profile.
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
// @Summary Текущий пользователь
// @Description Возвращает профиль пользователя из токена.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Профиль пользователя"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/me [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.me"

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

	user, err := h.service.Profile(r.Context(), requester.UserUID)
	if err != nil {
		log.Error("failed to read profile", sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user": user,
	}))
}
