// Package app собирает общую инфраструктуру процессов: базу, кэш, брокер,
// файловое и объектное хранилища и сервис заданий.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/video-downloader/internal/cache"
	"github.com/magabrotheeeer/video-downloader/internal/config"
	"github.com/magabrotheeeer/video-downloader/internal/migrations"
	"github.com/magabrotheeeer/video-downloader/internal/quota"
	"github.com/magabrotheeeer/video-downloader/internal/rabbitmq"
	schedulerservice "github.com/magabrotheeeer/video-downloader/internal/services/scheduler"
	services "github.com/magabrotheeeer/video-downloader/internal/services/video"
	"github.com/magabrotheeeer/video-downloader/internal/storage/filestore"
	"github.com/magabrotheeeer/video-downloader/internal/storage/objectstore"
	"github.com/magabrotheeeer/video-downloader/internal/storage/repository"
	"github.com/magabrotheeeer/video-downloader/internal/ytdlp"
)

// Infra открытые соединения, общие для API и воркера.
type Infra struct {
	DB        *repository.Storage
	Cache     *cache.Cache
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	Publisher *rabbitmq.Publisher
	Files     *filestore.Store
	// Archive nil, если объектное хранилище выключено
	Archive *objectstore.Client
	Policy  quota.Policy
	Video   *services.VideoService

	log *slog.Logger
}

func waitForDB(ctx context.Context, dsn string, log *slog.Logger) (*repository.Storage, error) {
	var lastErr error
	for attempt := 1; attempt <= 10; attempt++ {
		db, err := repository.New(ctx, dsn)
		if err == nil {
			return db, nil
		}
		lastErr = err
		log.Warn("database not ready", slog.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return nil, fmt.Errorf("database not ready after retries: %w", lastErr)
}

// NewInfra подключается ко всем зависимостям. При ошибке уже открытые ресурсы закрываются.
func NewInfra(ctx context.Context, cfg *config.Config, log *slog.Logger) (infra *Infra, err error) {
	infra = &Infra{log: log}
	defer func() {
		if err != nil {
			if closeErr := infra.Close(); closeErr != nil {
				log.Error("failed to release resources", slog.String("error", closeErr.Error()))
			}
			infra = nil
		}
	}()

	if infra.DB, err = waitForDB(ctx, cfg.StorageConnectionString, log); err != nil {
		return infra, fmt.Errorf("failed to connect storage: %w", err)
	}
	if cfg.RunMigrations {
		if err = migrations.Run(infra.DB.DB); err != nil {
			return infra, err
		}
	}

	if infra.Cache, err = cache.InitServer(ctx, cfg.RedisConnection); err != nil {
		return infra, fmt.Errorf("cache not initialized: %w", err)
	}

	if infra.Conn, err = rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay); err != nil {
		return infra, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	prefetch := cfg.Worker.Concurrency
	if infra.Channel, err = rabbitmq.SetupChannel(infra.Conn, cfg.RabbitMQ.Exchange, prefetch, rabbitmq.DownloadQueues(cfg.RabbitMQ)); err != nil {
		return infra, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	infra.Publisher = rabbitmq.NewPublisher(infra.Channel, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)

	if infra.Files, err = filestore.New(cfg.Downloads.Dir); err != nil {
		return infra, err
	}

	if cfg.ObjectStorage.Enabled {
		if infra.Archive, err = objectstore.NewClient(ctx, cfg.ObjectStorage); err != nil {
			return infra, err
		}
	}

	infra.Policy = quota.NewPolicy(cfg.Downloads.FreeDailyLimit, cfg.Downloads.DefaultTTL, cfg.Downloads.FreeTTL, cfg.Downloads.PremiumTTL)

	deps := services.Deps{
		Repo:         infra.DB,
		Extractor:    ytdlp.New(cfg.YtDlp.BinaryPath, cfg.YtDlp.Timeout, cfg.YtDlp.InfoTimeout),
		Dispatcher:   infra.Publisher,
		Files:        infra.Files,
		Cache:        infra.Cache,
		Policy:       infra.Policy,
		FormatPolicy: cfg.YtDlp.FormatPolicy,
	}
	if infra.Archive != nil {
		deps.Archive = infra.Archive
	}
	infra.Video = services.NewVideoService(deps, log)

	return infra, nil
}

// Scheduler собирает сервис проходов очистки и сверки поверх открытых соединений.
func (i *Infra) Scheduler(cfg *config.Config) *schedulerservice.SchedulerService {
	settings := schedulerservice.Settings{
		PurgeInterval:     cfg.Scheduler.PurgeInterval,
		ReconcileInterval: cfg.Scheduler.ReconcileInterval,
		PurgeBatch:        cfg.Scheduler.PurgeBatch,
		RequeueAfter:      cfg.Scheduler.RequeueAfter,
		ProcessingLimit:   cfg.YtDlp.Timeout + cfg.Scheduler.ProcessingGrace,
	}
	var objects schedulerservice.ObjectRemover
	if i.Archive != nil {
		objects = i.Archive
	}
	return schedulerservice.NewSchedulerService(i.DB, i.Files, objects, i.Publisher, i.Cache, settings, i.log)
}

// Close закрывает соединения, собирая все ошибки.
func (i *Infra) Close() error {
	var result *multierror.Error
	if i.Channel != nil {
		if err := i.Channel.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("rabbitmq channel: %w", err))
		}
	}
	if i.Conn != nil {
		if err := i.Conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("rabbitmq connection: %w", err))
		}
	}
	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("redis: %w", err))
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("postgres: %w", err))
		}
	}
	return result.ErrorOrNil()
}
