// Package services фоновые проходы: удаление просроченных заданий
// и сверка заданий, застрявших в очереди или в обработке.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/metrics"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// InterruptedMessage ошибка задания, обработка которого не завершилась.
const InterruptedMessage = "processing interrupted"

// JobRepository задания для фоновых проходов.
type JobRepository interface {
	ListExpiredJobs(ctx context.Context, limit int) ([]*models.Job, error)
	DeleteJob(ctx context.Context, id string) (int, error)
	ListStalePending(ctx context.Context, createdBefore time.Time) ([]*models.Job, error)
	FailStaleProcessing(ctx context.Context, startedBefore time.Time, message string) ([]string, error)
}

// FileRemover удаляет локальные файлы.
type FileRemover interface {
	Remove(path string) error
}

// ObjectRemover удаляет архивные объекты.
type ObjectRemover interface {
	Delete(ctx context.Context, key string) error
}

// Dispatcher повторно ставит задание в очередь.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// CacheInvalidator сбрасывает снимок задания.
type CacheInvalidator interface {
	InvalidateJob(ctx context.Context, jobID string) error
}

// Settings интервалы и пороги проходов.
type Settings struct {
	PurgeInterval     time.Duration
	ReconcileInterval time.Duration
	PurgeBatch        int
	// RequeueAfter возраст pending-задания, после которого оно публикуется повторно.
	RequeueAfter time.Duration
	// ProcessingLimit таймаут инструмента плюс запас.
	ProcessingLimit time.Duration
}

// SchedulerService выполняет фоновые проходы.
type SchedulerService struct {
	repo       JobRepository
	files      FileRemover
	objects    ObjectRemover
	dispatcher Dispatcher
	cache      CacheInvalidator
	settings   Settings
	log        *slog.Logger
	now        func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService. objects и cache могут быть nil.
func NewSchedulerService(repo JobRepository, files FileRemover, objects ObjectRemover, dispatcher Dispatcher,
	cache CacheInvalidator, settings Settings, log *slog.Logger) *SchedulerService {
	if settings.PurgeBatch <= 0 {
		settings.PurgeBatch = 100
	}
	return &SchedulerService{
		repo:       repo,
		files:      files,
		objects:    objects,
		dispatcher: dispatcher,
		cache:      cache,
		settings:   settings,
		log:        log,
		now:        time.Now,
	}
}

// every выполняет fn сразу и затем с интервалом, пока не отменён ctx.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// PurgeExpiredJobs периодически удаляет просроченные задания.
func (s *SchedulerService) PurgeExpiredJobs(ctx context.Context) {
	every(ctx, s.settings.PurgeInterval, func(ctx context.Context) {
		_, _ = s.RunPurge(ctx)
	})
}

// ReconcileJobs периодически сверяет застрявшие задания.
func (s *SchedulerService) ReconcileJobs(ctx context.Context) {
	every(ctx, s.settings.ReconcileInterval, func(ctx context.Context) {
		_, _, _ = s.RunReconcile(ctx)
	})
}

// RunPurge один проход удаления. Файл удаляется раньше записи,
// задание с неудалённым файлом остаётся до следующего прохода.
func (s *SchedulerService) RunPurge(ctx context.Context) (int, error) {
	log := s.log.With(slog.String("op", "scheduler.RunPurge"))
	purged := 0
	for {
		jobs, err := s.repo.ListExpiredJobs(ctx, s.settings.PurgeBatch)
		if err != nil {
			log.Error("failed to list expired jobs", sl.Err(err))
			return purged, err
		}
		if len(jobs) == 0 {
			break
		}

		removed := 0
		for _, job := range jobs {
			if s.purgeJob(ctx, log, job) {
				removed++
			}
		}
		purged += removed
		if removed == 0 || len(jobs) < s.settings.PurgeBatch {
			break
		}
	}
	if purged > 0 {
		metrics.SweepJobs.WithLabelValues("purged").Add(float64(purged))
		log.Info("expired jobs purged", slog.Int("count", purged))
	}
	return purged, nil
}

func (s *SchedulerService) purgeJob(ctx context.Context, log *slog.Logger, job *models.Job) bool {
	if job.DownloadPath != nil {
		if err := s.files.Remove(*job.DownloadPath); err != nil {
			log.Error("failed to remove file", sl.JobID(job.ID), sl.Err(err))
			return false
		}
	}
	if job.ObjectKey != nil && s.objects != nil {
		if err := s.objects.Delete(ctx, *job.ObjectKey); err != nil {
			log.Warn("failed to delete archived object", sl.JobID(job.ID), sl.Err(err))
		}
	}
	if _, err := s.repo.DeleteJob(ctx, job.ID); err != nil {
		log.Error("failed to delete job", sl.JobID(job.ID), sl.Err(err))
		return false
	}
	s.invalidate(ctx, job.ID)
	return true
}

// RunReconcile один проход сверки: повторная публикация долгих pending и
// перевод в failed заданий, обработка которых превысила лимит.
func (s *SchedulerService) RunReconcile(ctx context.Context) (requeued, failed int, err error) {
	log := s.log.With(slog.String("op", "scheduler.RunReconcile"))
	now := s.now()

	if s.settings.ProcessingLimit > 0 {
		ids, err := s.repo.FailStaleProcessing(ctx, now.Add(-s.settings.ProcessingLimit), InterruptedMessage)
		if err != nil {
			log.Error("failed to fail stale jobs", sl.Err(err))
			return 0, 0, err
		}
		for _, id := range ids {
			s.invalidate(ctx, id)
		}
		failed = len(ids)
	}

	if s.settings.RequeueAfter > 0 {
		jobs, err := s.repo.ListStalePending(ctx, now.Add(-s.settings.RequeueAfter))
		if err != nil {
			log.Error("failed to list stale pending jobs", sl.Err(err))
			return 0, failed, err
		}
		for _, job := range jobs {
			if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
				log.Error("failed to requeue job", sl.JobID(job.ID), sl.Err(err))
				continue
			}
			requeued++
		}
	}

	if requeued > 0 || failed > 0 {
		metrics.SweepJobs.WithLabelValues("requeued").Add(float64(requeued))
		metrics.SweepJobs.WithLabelValues("failed").Add(float64(failed))
		log.Info("jobs reconciled", slog.Int("requeued", requeued), slog.Int("failed", failed))
	}
	return requeued, failed, nil
}

func (s *SchedulerService) invalidate(ctx context.Context, jobID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateJob(ctx, jobID); err != nil {
		s.log.Warn("failed to invalidate job cache", sl.JobID(jobID), sl.Err(err))
	}
}
