// Package login реализует HTTP-обработчик входа по email и паролю.
//
// Обработчик проверяет учётные данные, выпускает access-токен и отдельным шагом
// выпускает refresh-токен, который уходит клиенту в http-only cookie.
package login

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
	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/services/auth"
)

// Request входные данные для входа.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Service описывает проверку учётных данных и выпуск access-токена.
type Service interface {
	ValidateCredentials(ctx context.Context, email, password string) (*models.PublicUser, error)
	Login(ctx context.Context, user *models.PublicUser) (*auth.LoginResult, error)
}

// RefreshIssuer выпускает и сохраняет refresh-токен.
type RefreshIssuer interface {
	GenerateAndStore(ctx context.Context, userID string) (string, error)
}

// CookieWriter доставляет refresh-токен клиенту.
type CookieWriter interface {
	Set(w http.ResponseWriter, token string)
}

// Handler обрабатывает HTTP-запросы входа.
type Handler struct {
	log      *slog.Logger
	service  Service
	refresh  RefreshIssuer
	cookie   CookieWriter
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, refresh RefreshIssuer, cookie CookieWriter) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		refresh:  refresh,
		cookie:   cookie,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	user, err := h.service.ValidateCredentials(r.Context(), req.Email, req.Password)
	if err == nil {
		var result *auth.LoginResult
		result, err = h.service.Login(r.Context(), user)
		if err == nil {
			h.complete(w, r, log, result)
			return
		}
	}

	if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUnauthorized) {
		log.Info("login rejected")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("Invalid credentials"))
		return
	}
	log.Error("login failed", sl.Err(err))
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, response.Error("internal error"))
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request, log *slog.Logger, result *auth.LoginResult) {
	refreshToken, err := h.refresh.GenerateAndStore(r.Context(), result.User.ID)
	if err != nil {
		log.Error("failed to issue refresh token", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	h.cookie.Set(w, refreshToken)

	log.Info("login success", slog.String("user_id", result.User.ID))
	render.JSON(w, r, response.StatusOKWithData(result))
}
