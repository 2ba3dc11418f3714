// Package resetrequest принимает запрос на сброс пароля.
//
// Ответ одинаков для существующего и несуществующего email, в том числе
// при сбое доставки письма: сбой только логируется.
package resetrequest

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

// Message постоянный ответ на запрос сброса.
const Message = "If the email exists, a password reset link has been sent."

// Request входные данные запроса сброса.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// Service запускает сброс пароля.
type Service interface {
	RequestReset(ctx context.Context, email string) error
}

// Handler обрабатывает POST /users/request-password-reset.
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
	const op = "handlers.users.resetrequest"

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

	if err := h.service.RequestReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, auth.ErrDelivery) {
			log.Warn("reset email was not delivered", sl.Err(err))
		} else {
			log.Error("password reset request failed", sl.Err(err))
		}
	}

	render.JSON(w, r, response.Message(Message))
}
