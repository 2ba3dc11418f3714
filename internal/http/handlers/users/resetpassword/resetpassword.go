// Package resetpassword завершает сброс пароля по одноразовому токену.
package resetpassword

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/auth-service/internal/http/response"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/services/auth"
)

// Request токен из письма, идентификатор пользователя и новый пароль.
type Request struct {
	Token       string `json:"token" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// Service завершает сброс пароля.
type Service interface {
	CompleteReset(ctx context.Context, token, newPassword, userID string) error
}

// Handler обрабатывает PUT /users/reset-password.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.resetpassword"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	err := h.service.CompleteReset(r.Context(), req.Token, req.NewPassword, req.UserID)
	if errors.Is(err, auth.ErrInvalidOrExpiredToken) {
		log.Info("reset token rejected", slog.String("user_id", req.UserID))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("Invalid or expired reset token"))
		return
	}
	if errors.Is(err, auth.ErrPasswordTooLong) {
		log.Info("new password too long", slog.String("user_id", req.UserID))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("field NewPassword must be at most 72 bytes long"))
		return
	}
	if err != nil {
		log.Error("failed to reset password", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.Message("Password has been reset successfully."))
}
