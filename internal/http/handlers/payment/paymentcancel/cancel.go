// Package paymentcancel отменяет подписку в конце оплаченного периода.
package paymentcancel

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

// Service описывает отмену подписки.
type Service interface {
	CancelSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
}

// Handler обрабатывает POST /payments/cancel-subscription.
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
// @Summary Отменить подписку
// @Description Помечает подписку к отмене в конце текущего периода. Premium действует до его окончания.
// @Tags Payments
// @Produce  json
// @Success 200 {object} response.Response "Подписка будет отменена"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Активной подписки нет"
// @Failure 500 {object} response.ErrorResponse "Ошибка платежного провайдера"
// @Router /payments/cancel-subscription [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.cancel"

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

	sub, err := h.service.CancelSubscription(r.Context(), requester.UserUID)
	if err != nil {
		log.Error("failed to cancel subscription", sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}

	log.Info("subscription set to cancel", slog.String("user_uid", requester.UserUID), slog.Time("period_end", sub.CurrentPeriodEnd))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
