// Package refresh реализует обмен refresh-токена из cookie на новый access-токен.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/auth-service/internal/http/response"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/services/auth"
)

// Service обменивает refresh-токен.
type Service interface {
	Refresh(ctx context.Context, presented string) (*auth.Session, error)
}

// Cookie читает, пишет и удаляет cookie с refresh-токеном.
type Cookie interface {
	Read(r *http.Request) (string, bool)
	Set(w http.ResponseWriter, token string)
	Clear(w http.ResponseWriter)
}

// Response тело успешного ответа.
type Response struct {
	AccessToken string             `json:"access_token"`
	User        *models.PublicUser `json:"user"`
}

// Handler обрабатывает POST /auth/refresh.
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
	const op = "handlers.auth.refresh"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	presented, ok := h.cookie.Read(r)
	if !ok {
		log.Info("refresh cookie missing")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("Invalid or expired refresh token"))
		return
	}

	session, err := h.service.Refresh(r.Context(), presented)
	if errors.Is(err, auth.ErrInvalidOrExpiredToken) {
		log.Info("refresh token rejected")
		h.cookie.Clear(w)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("Invalid or expired refresh token"))
		return
	}
	if err != nil {
		log.Error("refresh failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	h.cookie.Set(w, session.RefreshToken)
	log.Info("session refreshed", slog.String("user_id", session.User.ID))
	render.JSON(w, r, response.StatusOKWithData(Response{
		AccessToken: session.AccessToken,
		User:        session.User,
	}))
}
