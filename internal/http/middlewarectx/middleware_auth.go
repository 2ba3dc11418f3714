// Package middlewarectx содержит HTTP middleware авторизации запросов.
//
// Authorizer проверяет bearer-токен из заголовка Authorization, заново загружает
// пользователя по subject токена и отказывает, если пользователь удалён или
// выключен. Так деактивация действует сразу, не дожидаясь истечения токена.
// При успехе публичное представление пользователя кладётся в контекст запроса.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/auth-service/internal/http/response"
	"github.com/magabrotheeeer/auth-service/internal/lib/jwt"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/metrics"
	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// User ключ для *models.PublicUser в контексте.
const User Key = "user"

// Access уровень доступа маршрута.
type Access int

const (
	// Public маршрут доступен без токена.
	Public Access = iota
	// Protected маршрут требует действующего токена и активного пользователя.
	Protected
	// Admin дополнительно требует роль ADMIN.
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// TokenVerifier проверяет access-токен.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.AccessClaims, error)
}

// IdentityProvider загружает публичное представление пользователя.
type IdentityProvider interface {
	GetIdentity(ctx context.Context, id string) (*models.PublicUser, error)
}

// Authorizer охраняет маршруты согласно объявленному уровню доступа.
type Authorizer struct {
	verifier   TokenVerifier
	identities IdentityProvider
	log        *slog.Logger
}

// NewAuthorizer создает новый экземпляр Authorizer.
func NewAuthorizer(verifier TokenVerifier, identities IdentityProvider, log *slog.Logger) *Authorizer {
	return &Authorizer{
		verifier:   verifier,
		identities: identities,
		log:        log,
	}
}

// Require возвращает middleware для уровня доступа access.
// Для Public запрос пропускается без разбора заголовка.
func (a *Authorizer) Require(access Access) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if access == Public {
			return next
		}
		if access == Admin {
			next = RequireRole(a.log, models.RoleAdmin)(next)
		}
		return a.authenticate(next)
	}
}

func (a *Authorizer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "middlewarectx.Authorizer"

		log := a.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, ok := bearerToken(r)
		if !ok {
			log.Info("missing or invalid authorization header")
			deny(w, r, metrics.ReasonMissingToken)
			return
		}

		claims, err := a.verifier.VerifyAccessToken(token)
		if err != nil {
			reason := metrics.ReasonInvalidToken
			if errors.Is(err, jwt.ErrExpiredToken) {
				reason = metrics.ReasonExpiredToken
			}
			log.Info("access token rejected", sl.Err(err))
			deny(w, r, reason)
			return
		}

		user, err := a.identities.GetIdentity(r.Context(), claims.Subject)
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("token subject no longer exists", slog.String("user_id", claims.Subject))
			deny(w, r, metrics.ReasonUnknownUser)
			return
		}
		if err != nil {
			log.Error("failed to load identity", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		if !user.IsActive {
			log.Info("inactive user denied", slog.String("user_id", user.ID))
			deny(w, r, metrics.ReasonInactiveUser)
			return
		}

		ctx := context.WithValue(r.Context(), User, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext возвращает пользователя, положенного Authorizer.
func UserFromContext(ctx context.Context) (*models.PublicUser, bool) {
	user, ok := ctx.Value(User).(*models.PublicUser)
	return user, ok && user != nil
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func deny(w http.ResponseWriter, r *http.Request, reason string) {
	metrics.RecordDenied(reason)
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error("unauthorized"))
}
