package middlewarectx

import (
	"context"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Service проверяет access-токен и возвращает владельца запроса.
type Service interface {
	ValidateToken(ctx context.Context, token string) (models.Requester, error)
}
