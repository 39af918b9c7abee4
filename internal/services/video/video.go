// Package services управляет жизненным циклом заданий на загрузку:
// создание с учётом квоты, обработка воркером, статус, выдача и удаление файлов.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/metrics"
	"github.com/magabrotheeeer/video-downloader/internal/models"
	"github.com/magabrotheeeer/video-downloader/internal/quota"
	"github.com/magabrotheeeer/video-downloader/internal/storage/filestore"
	"github.com/magabrotheeeer/video-downloader/internal/ytdlp"
)

// JobRepository хранилище заданий и пользователей.
type JobRepository interface {
	CreateJobWithinQuota(ctx context.Context, job models.Job, since time.Time,
		allow func(tier models.Tier, jobsToday int) bool) (*models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobsByUser(ctx context.Context, userUID string) ([]*models.Job, error)
	MarkProcessing(ctx context.Context, id string) (bool, error)
	SaveJobInfo(ctx context.Context, id string, info *models.VideoInfo, formatID string) error
	CompleteJob(ctx context.Context, id, userUID, path string, expiresAt time.Time) (bool, error)
	FailJob(ctx context.Context, id, message string) error
	SetObjectKey(ctx context.Context, id, key string) error
	DeleteJob(ctx context.Context, id string) (int, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Extractor внешний инструмент получения метаданных и загрузки.
type Extractor interface {
	GetInfo(ctx context.Context, url string) (*models.VideoInfo, error)
	Download(ctx context.Context, url, formatID, destDir, token string) (string, error)
}

// Dispatcher передаёт задание воркеру.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// StatusCache кэш снимков заданий.
type StatusCache interface {
	GetJob(ctx context.Context, jobID string) (*models.Job, bool, error)
	SetJob(ctx context.Context, job *models.Job) error
	InvalidateJob(ctx context.Context, jobID string) error
}

// FileStore локальное хранилище файлов.
type FileStore interface {
	UserDir(userUID string) string
	Open(path string) (*filestore.File, error)
	Remove(path string) error
}

// Archive объектное хранилище для готовых файлов premium-пользователей.
type Archive interface {
	Upload(ctx context.Context, key, path, contentType string) error
	PresignDownload(ctx context.Context, key, filename string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Deps зависимости VideoService. Cache и Archive необязательны.
type Deps struct {
	Repo         JobRepository
	Extractor    Extractor
	Dispatcher   Dispatcher
	Files        FileStore
	Cache        StatusCache
	Archive      Archive
	Policy       quota.Policy
	FormatPolicy string
}

// VideoService оркестратор заданий на загрузку.
type VideoService struct {
	repo         JobRepository
	extractor    Extractor
	dispatcher   Dispatcher
	files        FileStore
	cache        StatusCache
	archive      Archive
	policy       quota.Policy
	formatPolicy string
	log          *slog.Logger
	now          func() time.Time
}

// NewVideoService создает новый экземпляр VideoService.
func NewVideoService(deps Deps, log *slog.Logger) *VideoService {
	formatPolicy := deps.FormatPolicy
	if formatPolicy == "" {
		formatPolicy = ytdlp.PolicyFirst
	}
	return &VideoService{
		repo:         deps.Repo,
		extractor:    deps.Extractor,
		dispatcher:   deps.Dispatcher,
		files:        deps.Files,
		cache:        deps.Cache,
		archive:      deps.Archive,
		policy:       deps.Policy,
		formatPolicy: formatPolicy,
		log:          log,
		now:          time.Now,
	}
}

// Download открытый файл готового задания и имя для сохранения.
type Download struct {
	File     *filestore.File
	Filename string
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", models.ErrValidation)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: invalid url", models.ErrValidation)
	}
	return raw, nil
}

func truncateTitle(title string) string {
	title = strings.TrimSpace(title)
	if r := []rune(title); len(r) > models.MaxTitleLength {
		return string(r[:models.MaxTitleLength])
	}
	return title
}

// RequestDownload создаёт задание в статусе pending и ставит его в очередь.
// Ответ не ждёт загрузки.
func (s *VideoService) RequestDownload(ctx context.Context, userUID string, req models.DownloadRequest) (string, error) {
	const op = "services.RequestDownload"
	rawURL, err := validateURL(req.URL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	job := models.Job{
		UserUID:   userUID,
		URL:       rawURL,
		Title:     truncateTitle(req.Title),
		FormatID:  strings.TrimSpace(req.FormatID),
		Status:    models.JobPending,
		CreatedAt: now,
		ExpiresAt: s.policy.InitialExpiry(now),
	}
	created, err := s.repo.CreateJobWithinQuota(ctx, job, quota.StartOfDay(now), s.policy.CanStartDownload)
	if err != nil {
		if errors.Is(err, models.ErrQuotaExceeded) {
			metrics.QuotaRejections.Inc()
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err = s.dispatcher.Dispatch(ctx, created.ID); err != nil {
		s.log.Error("failed to enqueue job", sl.JobID(created.ID), sl.Err(err))
		if failErr := s.repo.FailJob(context.WithoutCancel(ctx), created.ID, "failed to enqueue job"); failErr != nil {
			s.log.Error("failed to mark job failed", sl.JobID(created.ID), sl.Err(failErr))
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	metrics.JobsCreated.Inc()
	s.log.Info("job created", sl.JobID(created.ID), slog.String("user_uid", userUID))
	return created.ID, nil
}

// Process выполняет задание на стороне воркера. Ошибка возвращается только
// для временных сбоев, после которых сообщение нужно доставить повторно;
// сбои самой загрузки записываются в задание.
func (s *VideoService) Process(ctx context.Context, jobID string) error {
	const op = "services.Process"
	log := s.log.With(slog.String("op", op), sl.JobID(jobID))

	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Info("job is gone, skipping")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if job.Status.Terminal() {
		log.Info("job already finished, skipping", slog.String("status", string(job.Status)))
		return nil
	}

	started, err := s.repo.MarkProcessing(ctx, jobID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !started {
		log.Info("job is handled by another delivery, skipping")
		return nil
	}
	s.invalidate(ctx, jobID)
	startedAt := s.now()

	formatID, err := s.resolveFormat(ctx, job)
	if err != nil {
		return s.fail(ctx, log, job, err)
	}

	path, err := s.extractor.Download(ctx, job.URL, formatID, s.files.UserDir(job.UserUID), job.ID)
	if err != nil {
		return s.fail(ctx, log, job, err)
	}

	tier := models.TierFree
	if user, userErr := s.repo.GetUser(ctx, job.UserUID); userErr != nil {
		log.Warn("failed to load user tier, using free", sl.Err(userErr))
	} else {
		tier = user.Tier
	}

	completedAt := s.now().UTC()
	done, err := s.repo.CompleteJob(ctx, jobID, job.UserUID, path, s.policy.ExpiryFor(tier, completedAt))
	if err != nil || !done {
		if rmErr := s.files.Remove(path); rmErr != nil {
			log.Error("failed to remove orphan file", sl.Err(rmErr))
		}
		if err != nil {
			return s.fail(ctx, log, job, err)
		}
		log.Info("job changed while downloading, file discarded")
		s.invalidate(ctx, jobID)
		return nil
	}

	if tier == models.TierPremium {
		s.archiveFile(ctx, log, job, path)
	}

	s.invalidate(ctx, jobID)
	metrics.JobsFinished.WithLabelValues(string(models.JobCompleted)).Inc()
	metrics.JobDuration.Observe(time.Since(startedAt).Seconds())
	log.Info("job completed", slog.String("path", path))
	return nil
}

// resolveFormat выбирает формат и сохраняет метаданные видео.
// Если формат задан клиентом, ошибка получения метаданных не мешает загрузке.
func (s *VideoService) resolveFormat(ctx context.Context, job *models.Job) (string, error) {
	if job.FormatID != "" && job.Title != "" {
		return job.FormatID, nil
	}

	info, err := s.extractor.GetInfo(ctx, job.URL)
	if err != nil {
		if job.FormatID != "" {
			s.log.Warn("failed to fetch video info", sl.JobID(job.ID), sl.Err(err))
			return job.FormatID, nil
		}
		return "", err
	}

	formatID := job.FormatID
	if formatID == "" {
		formatID, err = ytdlp.SelectFormat(s.formatPolicy, info.Formats)
		if err != nil {
			return "", err
		}
	}
	if err = s.repo.SaveJobInfo(ctx, job.ID, info, formatID); err != nil {
		s.log.Warn("failed to save video info", sl.JobID(job.ID), sl.Err(err))
	}
	if job.Title == "" {
		job.Title = truncateTitle(info.Title)
	}
	return formatID, nil
}

func (s *VideoService) archiveFile(ctx context.Context, log *slog.Logger, job *models.Job, path string) {
	if s.archive == nil {
		return
	}
	key := job.UserUID + "/" + filepath.Base(path)
	if err := s.archive.Upload(ctx, key, path, filestore.ContentType(filepath.Ext(path))); err != nil {
		log.Error("failed to archive file", sl.Err(err))
		return
	}
	if err := s.repo.SetObjectKey(ctx, job.ID, key); err != nil {
		log.Error("failed to save object key", sl.Err(err))
	}
}

// fail записывает ошибку в задание. Прерванный контекст оставляет задание
// в processing, его подберёт сверка.
func (s *VideoService) fail(ctx context.Context, log *slog.Logger, job *models.Job, cause error) error {
	if ctx.Err() != nil {
		log.Warn("processing interrupted", sl.Err(cause))
		return ctx.Err()
	}
	msg := failureMessage(cause)
	if err := s.repo.FailJob(ctx, job.ID, msg); err != nil {
		log.Error("failed to mark job failed", sl.Err(err))
		return fmt.Errorf("services.fail: %w", err)
	}
	s.invalidate(ctx, job.ID)
	metrics.JobsFinished.WithLabelValues(string(models.JobFailed)).Inc()
	log.Warn("job failed", sl.Err(cause))
	return nil
}

const maxErrorLength = 500

func failureMessage(err error) string {
	var msg string
	var extractionErr *ytdlp.ExtractionError
	switch {
	case errors.Is(err, models.ErrNoFormatAvailable):
		msg = models.ErrNoFormatAvailable.Error()
	case errors.Is(err, models.ErrFileNotFound):
		msg = models.ErrFileNotFound.Error()
	case errors.As(err, &extractionErr):
		msg = extractionErr.Error()
	default:
		msg = err.Error()
	}
	if r := []rune(msg); len(r) > maxErrorLength {
		msg = string(r[:maxErrorLength])
	}
	return msg
}

func (s *VideoService) invalidate(ctx context.Context, jobID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateJob(ctx, jobID); err != nil {
		s.log.Warn("failed to invalidate job cache", sl.JobID(jobID), sl.Err(err))
	}
}

// Info метаданные видео по ссылке.
func (s *VideoService) Info(ctx context.Context, rawURL string) (*models.VideoInfo, error) {
	const op = "services.Info"
	rawURL, err := validateURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	info, err := s.extractor.GetInfo(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return info, nil
}

// getOwned загружает задание и проверяет доступ.
func (s *VideoService) getOwned(ctx context.Context, op, jobID string, requester models.Requester) (*models.Job, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !requester.CanAccess(job.UserUID) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}
	return job, nil
}

// Status текущее состояние задания, из кэша если возможно.
// Кэшируются только завершённые задания: снимок pending или processing,
// записанный после инвалидации воркером, скрыл бы завершение до истечения TTL.
func (s *VideoService) Status(ctx context.Context, jobID string, requester models.Requester) (*models.Job, error) {
	const op = "services.Status"
	if s.cache != nil {
		job, found, err := s.cache.GetJob(ctx, jobID)
		if err != nil {
			s.log.Warn("failed to read job cache", sl.JobID(jobID), sl.Err(err))
		}
		if found && job.ExpiresAt.After(s.now()) {
			if !requester.CanAccess(job.UserUID) {
				return nil, fmt.Errorf("%s: %w", op, models.ErrForbidden)
			}
			return job, nil
		}
	}

	job, err := s.getOwned(ctx, op, jobID, requester)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && job.Status.Terminal() {
		if err = s.cache.SetJob(ctx, job); err != nil {
			s.log.Warn("failed to cache job", sl.JobID(jobID), sl.Err(err))
		}
	}
	return job, nil
}

// List задания пользователя, новые первыми.
func (s *VideoService) List(ctx context.Context, userUID string) ([]*models.Job, error) {
	const op = "services.List"
	jobs, err := s.repo.ListJobsByUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}

// Delete удаляет файл, архивную копию и запись задания.
func (s *VideoService) Delete(ctx context.Context, jobID string, requester models.Requester) error {
	const op = "services.Delete"
	job, err := s.getOwned(ctx, op, jobID, requester)
	if err != nil {
		return err
	}
	if job.DownloadPath != nil {
		if err = s.files.Remove(*job.DownloadPath); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if job.ObjectKey != nil && s.archive != nil {
		if err = s.archive.Delete(ctx, *job.ObjectKey); err != nil {
			s.log.Warn("failed to delete archived object", sl.JobID(jobID), sl.Err(err))
		}
	}
	n, err := s.repo.DeleteJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	s.invalidate(ctx, jobID)
	s.log.Info("job deleted", sl.JobID(jobID))
	return nil
}

// Open открывает готовый файл для отдачи клиенту. Вызывающий закрывает файл.
func (s *VideoService) Open(ctx context.Context, jobID string, requester models.Requester) (*Download, error) {
	const op = "services.Open"
	job, err := s.getOwned(ctx, op, jobID, requester)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobCompleted {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotReady)
	}
	if job.DownloadPath == nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrFileMissing)
	}
	f, err := s.files.Open(*job.DownloadPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Download{File: f, Filename: downloadName(job, f.Ext)}, nil
}

// ArchiveLink временная ссылка на архивную копию.
func (s *VideoService) ArchiveLink(ctx context.Context, jobID string, requester models.Requester) (string, error) {
	const op = "services.ArchiveLink"
	job, err := s.getOwned(ctx, op, jobID, requester)
	if err != nil {
		return "", err
	}
	if s.archive == nil || job.Status != models.JobCompleted || job.ObjectKey == nil {
		return "", fmt.Errorf("%s: %w", op, models.ErrNotReady)
	}
	link, err := s.archive.PresignDownload(ctx, *job.ObjectKey, downloadName(job, filepath.Ext(*job.ObjectKey)))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return link, nil
}

func downloadName(job *models.Job, ext string) string {
	name := strings.TrimSpace(job.Title)
	if name == "" {
		name = job.ID
	}
	return name + ext
}
