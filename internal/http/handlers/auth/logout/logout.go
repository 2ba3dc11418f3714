// Package logout реализует выход: отзыв refresh-токена и удаление cookie.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/auth-service/internal/http/response"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
)

// Service отзывает сессию по refresh-токену.
type Service interface {
	LogoutByRefreshToken(ctx context.Context, presented string) error
}

// Cookie читает и удаляет cookie с refresh-токеном.
type Cookie interface {
	Read(r *http.Request) (string, bool)
	Clear(w http.ResponseWriter)
}

// Handler обрабатывает POST /auth/logout. Ответ всегда 200.
type Handler struct {
	log     *slog.Logger
	service Service
	cookie  Cookie
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, cookie Cookie) *Handler {
	return &Handler{log: log, service: service, cookie: cookie}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if presented, ok := h.cookie.Read(r); ok {
		if err := h.service.LogoutByRefreshToken(r.Context(), presented); err != nil {
			log.Error("failed to revoke refresh token", sl.Err(err))
		}
	}
	h.cookie.Clear(w)

	render.JSON(w, r, response.Message("Logged out successfully"))
}
