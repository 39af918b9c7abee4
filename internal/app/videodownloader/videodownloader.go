// Package videodownloader собирает HTTP API сервиса загрузки видео
// и фоновые проходы очистки и сверки заданий.
package videodownloader

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/hashicorp/go-multierror"

	"github.com/magabrotheeeer/video-downloader/internal/app"
	"github.com/magabrotheeeer/video-downloader/internal/config"
	"github.com/magabrotheeeer/video-downloader/internal/http/handlers/health"
	"github.com/magabrotheeeer/video-downloader/internal/http/middlewarectx"
	"github.com/magabrotheeeer/video-downloader/internal/lib/jwt"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/video-downloader/internal/services/auth"
	paymentservice "github.com/magabrotheeeer/video-downloader/internal/services/payment"
	schedulerservice "github.com/magabrotheeeer/video-downloader/internal/services/scheduler"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-сервер и планировщик фоновых проходов.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	infra     *app.Infra
	scheduler *schedulerservice.SchedulerService
}

// New подключает зависимости и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	infra, err := app.NewInfra(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	authService := authservice.NewAuthService(infra.DB, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), logger)
	paymentService := paymentservice.New(infra.DB, paymentprovider.NewClient(cfg.Stripe, nil), logger)

	scheduler := infra.Scheduler(cfg)

	redisPing := func(ctx context.Context) error {
		return infra.Cache.Db.Ping(ctx).Err()
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Auth:    authService,
		Video:   infra.Video,
		Payment: paymentService,
		Limiter: middlewarectx.NewRateLimiter(cfg.RateLimit),
		Checks: map[string]health.Check{
			"postgres": infra.DB.Ping,
			"redis":    redisPing,
		},
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:    srv,
		logger:    logger,
		infra:     infra,
		scheduler: scheduler,
	}, nil
}

// Run запускает сервер и проходы планировщика до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	sweepCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.scheduler.PurgeExpiredJobs(sweepCtx)
	}()
	go func() {
		defer wg.Done()
		a.scheduler.ReconcileJobs(sweepCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var result *multierror.Error
	select {
	case err := <-errCh:
		if err != nil {
			result = multierror.Append(result, err)
		}
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		if err := a.server.Shutdown(timeoutCtx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	stopSweeps()
	wg.Wait()

	if err := a.infra.Close(); err != nil {
		a.logger.Error("failed to close resources", sl.Err(err))
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
