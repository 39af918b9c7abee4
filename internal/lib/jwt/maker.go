// Package jwt выпускает и проверяет JWT токены доступа.
//
// Токен несёт идентификатор пользователя и его роль, подписывается HS256.
package jwt

import (
	"time"
)

// Maker описывает генерацию и разбор токенов.
type Maker interface {
	GenerateToken(userUID, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на секретном ключе и времени жизни токена.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт MakerImpl.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
