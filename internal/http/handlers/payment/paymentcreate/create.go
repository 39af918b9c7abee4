// Package paymentcreate создает сессию оплаты Stripe Checkout для premium-подписки.
package paymentcreate

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

// Service определяет создание сессии оплаты.
type Service interface {
	CreateCheckoutSession(ctx context.Context, userUID string) (*models.CheckoutSession, error)
}

// Handler обрабатывает POST /payments/create-checkout-session.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Оформить premium
// @Description Создает Stripe Checkout сессию в режиме подписки и возвращает ссылку на оплату.
// @Tags Payments
// @Produce  json
// @Success 200 {object} response.Response "Сессия создана"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Premium уже активен"
// @Failure 500 {object} response.ErrorResponse "Ошибка платежного провайдера"
// @Router /payments/create-checkout-session [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"

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

	session, err := h.service.CreateCheckoutSession(r.Context(), requester.UserUID)
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		code, resp := response.FromError(err)
		w.WriteHeader(code)
		render.JSON(w, r, resp)
		return
	}

	log.Info("checkout session created", slog.String("session_id", session.SessionID))
	render.JSON(w, r, response.StatusOKWithData(session))
}
