package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/auth-service/internal/http/response"
	"github.com/magabrotheeeer/auth-service/internal/metrics"
	"github.com/magabrotheeeer/auth-service/internal/models"
)

// RequireRole пропускает только пользователей с ролью role.
// Должен стоять после Authorizer: без пользователя в контексте отвечает 401.
func RequireRole(log *slog.Logger, role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireRole"

			user, ok := UserFromContext(r.Context())
			if !ok {
				log.Error("user identification missing", slog.String("op", op))
				deny(w, r, metrics.ReasonMissingToken)
				return
			}
			if user.Role != role {
				log.Info("access denied by role",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("user_id", user.ID),
					slog.String("required_role", string(role)),
				)
				metrics.RecordDenied(metrics.ReasonForbidden)
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
