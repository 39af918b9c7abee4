package models

import "errors"

// Доменные ошибки. Обработчики сопоставляют их с HTTP-статусами через errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrQuotaExceeded      = errors.New("daily download limit reached")
	ErrNoFormatAvailable  = errors.New("no formats available for this video")
	ErrExtraction         = errors.New("extraction failed")
	ErrFileNotFound       = errors.New("downloaded file not found")
	ErrSignature          = errors.New("invalid webhook signature")
	ErrNotReady           = errors.New("video is not ready for download")
	ErrFileMissing        = errors.New("video file not found")
	ErrAlreadyPremium     = errors.New("user already has an active premium subscription")
	ErrEmailTaken         = errors.New("email is already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
