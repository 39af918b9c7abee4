package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/video-downloader/internal/http/response"
)

// RequireRole пропускает только пользователей с указанной ролью.
// Должен стоять после JWTMiddleware.
func RequireRole(log *slog.Logger, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requester, ok := RequesterFrom(r.Context())
			if !ok {
				log.Error("user identification missing")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			if requester.Role != role {
				log.Warn("access denied", slog.String("user_uid", requester.UserUID), slog.String("role", requester.Role))
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("access denied"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
