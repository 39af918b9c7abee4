// Package sl содержит вспомогательные функции для логгера slog.
package sl

import "log/slog"

// Err возвращает атрибут "error" с текстом ошибки.
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// JobID атрибут с идентификатором задания.
func JobID(id string) slog.Attr {
	return slog.String("job_id", id)
}
