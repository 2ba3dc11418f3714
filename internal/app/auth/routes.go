package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/auth-service/internal/http/cookie"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/auth/refresh"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/health"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/users/activation"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/users/list"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/users/profile"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/users/register"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/users/resetpassword"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/users/resetrequest"
	"github.com/magabrotheeeer/auth-service/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/auth-service/internal/services/auth"
)

// Route маршрут API с явно объявленным уровнем доступа.
type Route struct {
	Method  string
	Pattern string
	Access  middlewarectx.Access
	Handler http.Handler
}

// Deps зависимости маршрутов.
type Deps struct {
	Log        *slog.Logger
	Service    *authservice.Service
	Authorizer *middlewarectx.Authorizer
	Limiter    *rate.Limiter
	Cookie     *cookie.Refresh
	Health     map[string]health.Pinger
	Metrics    http.Handler
}

// Routes возвращает таблицу маршрутов /api/v1.
func Routes(d Deps) []Route {
	return []Route{
		{http.MethodPost, "/users/register", middlewarectx.Public, register.New(d.Log, d.Service)},
		{http.MethodPost, "/auth/login", middlewarectx.Public, login.New(d.Log, d.Service, d.Service.RefreshTokens(), d.Cookie)},
		{http.MethodPost, "/auth/refresh", middlewarectx.Public, refresh.New(d.Log, d.Service, d.Cookie)},
		{http.MethodPost, "/auth/logout", middlewarectx.Public, logout.New(d.Log, d.Service, d.Cookie)},
		// Маршруты сброса не ограничены по частоте.
		{http.MethodPost, "/users/request-password-reset", middlewarectx.Public, resetrequest.New(d.Log, d.Service)},
		{http.MethodPut, "/users/reset-password", middlewarectx.Public, resetpassword.New(d.Log, d.Service)},
		{http.MethodGet, "/users/profile", middlewarectx.Protected, profile.New(d.Log)},
		{http.MethodGet, "/users", middlewarectx.Admin, list.New(d.Log, d.Service)},
		{http.MethodPatch, "/users/{id}/active", middlewarectx.Admin, activation.New(d.Log, d.Service)},
	}
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		for _, rt := range Routes(d) {
			chain := []func(http.Handler) http.Handler{}
			if rt.Access != middlewarectx.Public && d.Limiter != nil {
				chain = append(chain, middlewarectx.RateLimitMiddleware(d.Log, d.Limiter))
			}
			chain = append(chain, d.Authorizer.Require(rt.Access))
			r.With(chain...).Method(rt.Method, rt.Pattern, rt.Handler)
		}
	})

	r.Method(http.MethodGet, "/health", health.New(d.Log, d.Health))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
}
