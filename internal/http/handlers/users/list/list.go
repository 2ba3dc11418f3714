// Package list отдаёт администратору страницу пользователей.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/auth-service/internal/http/response"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/models"
)

const (
	// DefaultLimit размер страницы, если limit не передан.
	DefaultLimit = 50
	// MaxLimit наибольший допустимый limit.
	MaxLimit = 100
)

// Request параметры страницы из query-строки.
type Request struct {
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`
}

// Service отдаёт пользователей постранично.
type Service interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.PublicUser, error)
}

// Handler обрабатывает GET /users.
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
	const op = "handlers.users.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	req := Request{Limit: DefaultLimit}
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &req.Limit, "offset": &req.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			log.Info("invalid query parameter", slog.String("param", name), sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid "+name))
			return
		}
		*dst = v
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	users, err := h.service.ListUsers(r.Context(), req.Limit, req.Offset)
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Debug("users listed", slog.Int("count", len(users)), slog.Int("offset", req.Offset))
	render.JSON(w, r, response.StatusOKWithData(users))
}
