// Package middlewarectx содержит HTTP middleware: проверку JWT, ролей,
// ограничение частоты запросов и сбор метрик.
//
// JWTMiddleware проверяет заголовок Authorization и кладёт в контекст
// идентификатор пользователя и его роль.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/video-downloader/internal/http/response"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID ключ идентификатора пользователя в контексте
	UserUID Key = "user_uid"
	// Role ключ роли пользователя в контексте
	Role Key = "role"
)

// JWTMiddleware возвращает middleware, который проверяет Bearer-токен.
// Неверный токен дает 401 Unauthorized, сбой проверки 500.
func JWTMiddleware(authService Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			requester, err := authService.ValidateToken(r.Context(), tokenStr)
			if err != nil && !errors.Is(err, models.ErrInvalidCredentials) {
				log.Error("failed to validate token", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error(response.MsgInternal))
				return
			}
			if err != nil || requester.UserUID == "" {
				log.Warn("invalid or expired token", sl.Err(err))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), requester)))
		})
	}
}

// WithRequester кладёт пользователя и роль в контекст.
func WithRequester(ctx context.Context, requester models.Requester) context.Context {
	ctx = context.WithValue(ctx, UserUID, requester.UserUID)
	return context.WithValue(ctx, Role, requester.Role)
}

// RequesterFrom достаёт пользователя из контекста, записанного JWTMiddleware.
func RequesterFrom(ctx context.Context) (models.Requester, bool) {
	uid, ok := ctx.Value(UserUID).(string)
	if !ok || uid == "" {
		return models.Requester{}, false
	}
	role, _ := ctx.Value(Role).(string)
	return models.Requester{UserUID: uid, Role: role}, true
}
