// Package worker собирает процесс, который забирает задания из очереди
// и выполняет загрузки.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/video-downloader/internal/app"
	"github.com/magabrotheeeer/video-downloader/internal/config"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/models"
	"github.com/magabrotheeeer/video-downloader/internal/rabbitmq"
)

// Processor выполняет одно задание.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// App воркер загрузок.
type App struct {
	infra       *app.Infra
	processor   Processor
	queue       string
	concurrency int
	metrics     *http.Server
	logger      *slog.Logger
}

// New подключает зависимости воркера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	infra, err := app.NewInfra(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &App{
		infra:       infra,
		processor:   infra.Video,
		queue:       cfg.RabbitMQ.Queue,
		concurrency: cfg.Worker.Concurrency,
		metrics: &http.Server{
			Addr:              cfg.Worker.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}, nil
}

// HandleMessage разбирает сообщение очереди и обрабатывает задание.
// Нечитаемое сообщение подтверждается, чтобы не зациклить очередь.
func HandleMessage(processor Processor, log *slog.Logger) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		var msg models.JobMessage
		if err := json.Unmarshal(body, &msg); err != nil || msg.JobID == "" {
			log.Error("dropping malformed job message", slog.String("body", string(body)), sl.Err(err))
			return nil
		}
		if err := processor.Process(ctx, msg.JobID); err != nil {
			return fmt.Errorf("process job %s: %w", msg.JobID, err)
		}
		return nil
	}
}

// Run обрабатывает очередь до отмены ctx или потери соединения с брокером.
func (a *App) Run(ctx context.Context) error {
	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	connClosed := a.infra.Conn.NotifyClose(make(chan *amqp.Error, 1))

	wait, err := rabbitmq.ConsumerMessage(consumeCtx, a.logger, a.infra.Channel, a.queue, a.concurrency,
		HandleMessage(a.processor, a.logger))
	if err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", a.queue), sl.Err(err))
		return multierror.Append(err, a.infra.Close()).ErrorOrNil()
	}

	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.metrics.Addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", sl.Err(err))
		}
	}()

	a.logger.Info("worker started", slog.String("queue", a.queue), slog.Int("concurrency", a.concurrency))

	var result *multierror.Error
	select {
	case <-ctx.Done():
		a.logger.Info("worker shutting down gracefully")
	case amqpErr := <-connClosed:
		a.logger.Error("rabbitmq connection lost", slog.Any("err", amqpErr))
		result = multierror.Append(result, fmt.Errorf("rabbitmq connection lost: %v", amqpErr))
	}

	// запущенные загрузки получают отмену и остаются в processing до сверки
	cancel()
	wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := a.metrics.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := a.infra.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
