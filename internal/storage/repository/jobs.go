package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

const jobColumns = `id, user_uid, url, title, thumbnail, duration, format_id, formats, status,
	download_path, object_key, error, created_at, started_at, expires_at`

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		j                         models.Job
		status                    string
		formats                   []byte
		path, objectKey, errorMsg sql.NullString
		startedAt                 sql.NullTime
	)
	if err := row.Scan(&j.ID, &j.UserUID, &j.URL, &j.Title, &j.Thumbnail, &j.Duration, &j.FormatID,
		&formats, &status, &path, &objectKey, &errorMsg, &j.CreatedAt, &startedAt, &j.ExpiresAt); err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	if len(formats) > 0 {
		if err := json.Unmarshal(formats, &j.Formats); err != nil {
			return nil, err
		}
	}
	if path.Valid {
		j.DownloadPath = &path.String
	}
	if objectKey.Valid {
		j.ObjectKey = &objectKey.String
	}
	if errorMsg.Valid {
		j.Error = &errorMsg.String
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	return &j, nil
}

func (s *Storage) queryJobs(ctx context.Context, op, query string, args ...any) ([]*models.Job, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, j)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateJobWithinQuota атомарно проверяет квоту и создаёт задание.
// Строка пользователя блокируется на время транзакции, поэтому конкурентные
// запросы одного пользователя видят уже созданные задания друг друга.
func (s *Storage) CreateJobWithinQuota(ctx context.Context, job models.Job, since time.Time,
	allow func(tier models.Tier, jobsToday int) bool) (*models.Job, error) {
	const op = "storage.CreateJobWithinQuota"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	var tier string
	if err = tx.QueryRowContext(ctx, `SELECT tier FROM users WHERE uid = $1 FOR UPDATE`, job.UserUID).
		Scan(&tier); err != nil {
		return nil, notFound(op, err)
	}

	var jobsToday int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE user_uid = $1 AND created_at >= $2`,
		job.UserUID, since).Scan(&jobsToday); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !allow(models.Tier(tier), jobsToday) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrQuotaExceeded)
	}

	query := `INSERT INTO jobs (user_uid, url, title, format_id, status, created_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + jobColumns
	created, err := scanJob(tx.QueryRowContext(ctx, query,
		job.UserUID, job.URL, job.Title, job.FormatID, string(models.JobPending), job.CreatedAt, job.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// GetJob возвращает непросроченное задание по ID.
func (s *Storage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	const op = "storage.GetJob"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 AND expires_at > NOW()`
	j, err := scanJob(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(op, err)
	}
	return j, nil
}

// ListJobsByUser возвращает задания пользователя, новые первыми.
func (s *Storage) ListJobsByUser(ctx context.Context, userUID string) ([]*models.Job, error) {
	const op = "storage.ListJobsByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + jobColumns + `
			  FROM jobs
			  WHERE user_uid = $1 AND expires_at > NOW()
			  ORDER BY created_at DESC`
	return s.queryJobs(ctx, op, query, userUID)
}

// MarkProcessing переводит задание из pending в processing.
// Возвращает false, если задание уже взято другим обработчиком.
func (s *Storage) MarkProcessing(ctx context.Context, id string) (bool, error) {
	const op = "storage.MarkProcessing"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE jobs
			  SET status = 'processing', started_at = NOW()
			  WHERE id = $1 AND status = 'pending' AND expires_at > NOW()`, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// SaveJobInfo сохраняет метаданные видео и выбранный формат.
// Заголовок, заданный клиентом, не перезаписывается.
func (s *Storage) SaveJobInfo(ctx context.Context, id string, info *models.VideoInfo, formatID string) error {
	const op = "storage.SaveJobInfo"

	formats, err := json.Marshal(info.Formats)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	title := info.Title
	if len([]rune(title)) > models.MaxTitleLength {
		title = string([]rune(title)[:models.MaxTitleLength])
	}

	query := `UPDATE jobs
			  SET title = CASE WHEN title = '' THEN $2 ELSE title END,
			      thumbnail = $3,
			      duration = $4,
			      formats = $5,
			      format_id = $6
			  WHERE id = $1`
	if _, err = s.DB.ExecContext(ctx, query, id, title, info.Thumbnail, info.Duration, formats, formatID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CompleteJob отмечает задание выполненным и увеличивает счётчик загрузок владельца
// в одной транзакции. Возвращает false, если задание не было в processing.
func (s *Storage) CompleteJob(ctx context.Context, id, userUID, path string, expiresAt time.Time) (bool, error) {
	const op = "storage.CompleteJob"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `UPDATE jobs
			  SET status = 'completed', download_path = $2, expires_at = $3, error = NULL
			  WHERE id = $1 AND status = 'processing'`, id, path, expiresAt)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err = tx.ExecContext(ctx, `UPDATE users SET download_count = download_count + 1 WHERE uid = $1`,
		userUID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// FailJob отмечает незавершённое задание ошибкой.
func (s *Storage) FailJob(ctx context.Context, id, message string) error {
	const op = "storage.FailJob"

	_, err := s.DB.ExecContext(ctx, `UPDATE jobs
			  SET status = 'failed', error = $2, download_path = NULL
			  WHERE id = $1 AND status IN ('pending', 'processing')`, id, message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetObjectKey запоминает ключ объекта в архиве.
func (s *Storage) SetObjectKey(ctx context.Context, id, key string) error {
	const op = "storage.SetObjectKey"
	if _, err := s.DB.ExecContext(ctx, `UPDATE jobs SET object_key = $2 WHERE id = $1`, id, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteJob удаляет запись задания и возвращает количество удалённых строк.
func (s *Storage) DeleteJob(ctx context.Context, id string) (int, error) {
	const op = "storage.DeleteJob"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListExpiredJobs возвращает до limit просроченных заданий для очистки.
func (s *Storage) ListExpiredJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	const op = "storage.ListExpiredJobs"
	query := `SELECT ` + jobColumns + `
			  FROM jobs
			  WHERE expires_at <= NOW()
			  ORDER BY expires_at
			  LIMIT $1`
	return s.queryJobs(ctx, op, query, limit)
}

// ListStalePending задания, ожидающие обработки дольше, чем до createdBefore.
func (s *Storage) ListStalePending(ctx context.Context, createdBefore time.Time) ([]*models.Job, error) {
	const op = "storage.ListStalePending"
	query := `SELECT ` + jobColumns + `
			  FROM jobs
			  WHERE status = 'pending' AND created_at < $1 AND expires_at > NOW()
			  ORDER BY created_at`
	return s.queryJobs(ctx, op, query, createdBefore)
}

// FailStaleProcessing отмечает ошибкой задания, обработка которых началась раньше startedBefore.
// Возвращает идентификаторы изменённых заданий.
func (s *Storage) FailStaleProcessing(ctx context.Context, startedBefore time.Time, message string) ([]string, error) {
	const op = "storage.FailStaleProcessing"

	rows, err := s.DB.QueryContext(ctx, `UPDATE jobs
			  SET status = 'failed', error = $2
			  WHERE status = 'processing' AND started_at < $1
			  RETURNING id`, startedBefore, message)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
