// Package paymentwebhook принимает события Stripe.
//
// Подпись проверяется сервисом по заголовку Stripe-Signature. Ответ не 2xx
// заставляет Stripe повторить доставку, поэтому 500 отдается только на ошибки обработки.
package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/video-downloader/internal/http/response"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// MaxBodyBytes ограничение размера тела события.
const MaxBodyBytes = int64(65536)

// SignatureHeader заголовок с подписью Stripe.
const SignatureHeader = "Stripe-Signature"

// Service проверяет подпись и применяет событие.
type Service interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Handler обрабатывает POST /payments/webhook.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
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
// @Summary Webhook Stripe
// @Description Принимает подписанные события биллинга и синхронизирует подписки.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} response.Response "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Неверная подпись или тело"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки, Stripe повторит доставку"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer r.Body.Close()

	if err = h.service.HandleWebhook(r.Context(), body, r.Header.Get(SignatureHeader)); err != nil {
		if errors.Is(err, models.ErrSignature) {
			log.Warn("webhook signature rejected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(models.ErrSignature.Error()))
			return
		}
		log.Error("failed to process webhook", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.MsgInternal))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"received": true,
	}))
}
