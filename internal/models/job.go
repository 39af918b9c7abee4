package models

import "time"

// JobStatus состояние задания на загрузку.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal сообщает, что задание больше не изменится.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// MaxTitleLength максимальная длина заголовка задания.
const MaxTitleLength = 200

// Job задание на загрузку видео.
// DownloadPath заполнен тогда и только тогда, когда Status = completed.
type Job struct {
	ID           string     `json:"id"`
	UserUID      string     `json:"user_id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Thumbnail    string     `json:"thumbnail,omitempty"`
	Duration     string     `json:"duration,omitempty"`
	FormatID     string     `json:"format_id,omitempty"`
	Formats      []Format   `json:"formats,omitempty"`
	Status       JobStatus  `json:"status"`
	DownloadPath *string    `json:"download_path,omitempty"`
	ObjectKey    *string    `json:"-"`
	Error        *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

// JobStatusView ответ на запрос статуса задания.
type JobStatusView struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	DownloadPath *string   `json:"download_path,omitempty"`
	Error        *string   `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// StatusView формирует представление статуса задания.
func (j *Job) StatusView() JobStatusView {
	return JobStatusView{
		ID:           j.ID,
		Status:       j.Status,
		Title:        j.Title,
		URL:          j.URL,
		DownloadPath: j.DownloadPath,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		ExpiresAt:    j.ExpiresAt,
	}
}

// DownloadRequest тело запроса на загрузку.
type DownloadRequest struct {
	URL      string `json:"url" validate:"required,url"`
	FormatID string `json:"format_id" validate:"omitempty,max=64"`
	Title    string `json:"title" validate:"omitempty,max=200"`
}

// InfoRequest тело запроса метаданных видео.
type InfoRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// JobMessage сообщение в очереди заданий, несёт только идентификатор.
type JobMessage struct {
	JobID string `json:"job_id"`
}
