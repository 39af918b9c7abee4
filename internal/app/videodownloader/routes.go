package videodownloader

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/auth/me"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/auth/password"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/health"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/payment/paymentcancel"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/payment/paymentcreate"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/payment/paymentsubscription"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/payment/paymentwebhook"
	userlist "github.com/magabrotheeeer/video-downloader/internal/http/handlers/user/list"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/user/update"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/video/create"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/video/info"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/video/link"
	videolist "github.com/magabrotheeeer/video-downloader/internal/http/handlers/video/list"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/video/remove"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/video/status"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/video/stream"
	"github.com/magabrotheeeer/video-downloader/internal/http/middlewarectx"
	"github.com/magabrotheeeer/video-downloader/internal/models"
	authservice "github.com/magabrotheeeer/video-downloader/internal/services/auth"
	paymentservice "github.com/magabrotheeeer/video-downloader/internal/services/payment"
	videoservice "github.com/magabrotheeeer/video-downloader/internal/services/video"
)

// Services зависимости маршрутов.
type Services struct {
	Auth    *authservice.AuthService
	Video   *videoservice.VideoService
	Payment *paymentservice.PaymentService
	Limiter *middlewarectx.RateLimiter
	Checks  map[string]health.Check
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		middlewarectx.Metrics,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, svc.Limiter))
			r.Post("/auth/register", register.New(logger, svc.Auth).ServeHTTP)
			r.Post("/auth/login", login.New(logger, svc.Auth).ServeHTTP)
		})

		// Webhook подписывается Stripe, JWT не нужен
		r.Post("/payments/webhook", paymentwebhook.New(logger, svc.Payment).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, svc.Limiter))

			r.Get("/auth/me", me.New(logger, svc.Auth).ServeHTTP)
			r.Put("/auth/password", password.New(logger, svc.Auth).ServeHTTP)

			r.Get("/users/profile", me.New(logger, svc.Auth).ServeHTTP)
			r.Put("/users/profile", update.New(logger, svc.Auth).ServeHTTP)
			r.With(middlewarectx.RequireRole(logger, models.RoleAdmin)).
				Get("/users", userlist.New(logger, svc.Auth).ServeHTTP)

			r.Post("/videos/info", info.New(logger, svc.Video).ServeHTTP)
			r.Post("/videos/download", create.New(logger, svc.Video).ServeHTTP)
			r.Get("/videos", videolist.New(logger, svc.Video).ServeHTTP)
			r.Get("/videos/{id}/status", status.New(logger, svc.Video).ServeHTTP)
			r.Get("/videos/{id}/download", stream.New(logger, svc.Video).ServeHTTP)
			r.Get("/videos/{id}/link", link.New(logger, svc.Video).ServeHTTP)
			r.Delete("/videos/{id}", remove.New(logger, svc.Video).ServeHTTP)

			r.Post("/payments/create-checkout-session", paymentcreate.New(logger, svc.Payment).ServeHTTP)
			r.Get("/payments/subscription", paymentsubscription.New(logger, svc.Payment).ServeHTTP)
			r.Post("/payments/cancel-subscription", paymentcancel.New(logger, svc.Payment).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, svc.Checks).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
