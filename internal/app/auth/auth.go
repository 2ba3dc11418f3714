// Package auth собирает HTTP-приложение сервиса аутентификации.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/auth-service/internal/cache"
	"github.com/magabrotheeeer/auth-service/internal/config"
	"github.com/magabrotheeeer/auth-service/internal/http/cookie"
	"github.com/magabrotheeeer/auth-service/internal/http/handlers/health"
	"github.com/magabrotheeeer/auth-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/auth-service/internal/lib/jwt"
	"github.com/magabrotheeeer/auth-service/internal/lib/password"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/lib/smtp"
	"github.com/magabrotheeeer/auth-service/internal/metrics"
	"github.com/magabrotheeeer/auth-service/internal/migrations"
	"github.com/magabrotheeeer/auth-service/internal/rabbitmq"
	authservice "github.com/magabrotheeeer/auth-service/internal/services/auth"
	"github.com/magabrotheeeer/auth-service/internal/services/sender"
	"github.com/magabrotheeeer/auth-service/internal/storage"
	"github.com/magabrotheeeer/auth-service/internal/storage/memory"
)

const shutdownTimeout = 15 * time.Second

// userStore хранилище, которое нужно и сервису, и Authorizer.
type userStore interface {
	cache.UserStore
	middlewarectx.IdentityProvider
}

// App HTTP-приложение с его ресурсами.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	closers []func()
}

// New собирает приложение по конфигу. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.auth.New"
	app := &App{logger: logger}

	deps, err := app.build(ctx, cfg)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, deps)

	app.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	return app, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) (Deps, error) {
	checks := map[string]health.Pinger{}

	var store userStore
	switch cfg.Storage.Driver {
	case "memory":
		a.logger.Warn("using in-memory storage, data is lost on restart")
		store = memory.New()
	default:
		db, err := storage.New(ctx, cfg.Storage.ConnectionString)
		if err != nil {
			return Deps{}, err
		}
		a.closers = append(a.closers, db.Close)
		stdDB, err := db.StdDB()
		if err != nil {
			return Deps{}, err
		}
		if err = migrations.Run(stdDB, cfg.Storage.MigrationsPath); err != nil {
			return Deps{}, err
		}
		checks["storage"] = db
		store = db
	}

	if cfg.RedisConnection.Address != "" {
		redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return Deps{}, err
		}
		a.closers = append(a.closers, func() {
			if err := redisCache.Close(); err != nil {
				a.logger.Error("failed to close redis", sl.Err(err))
			}
		})
		checks["cache"] = redisCache
		store = cache.NewIdentityStore(store, redisCache, cfg.RedisConnection.IdentityTTL, a.logger)
	}

	hasher, err := password.New(cfg.Password.Algorithm, cfg.Password.BcryptCost)
	if err != nil {
		return Deps{}, err
	}
	maker := jwt.NewMaker(jwt.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		Issuer:        cfg.JWT.Issuer,
	})

	dispatcher, err := a.dispatcher(ctx, cfg)
	if err != nil {
		return Deps{}, err
	}

	service, err := authservice.NewService(a.logger, store, hasher, maker, dispatcher, authservice.ResetConfig{
		TokenTTL:    cfg.Reset.TokenTTL,
		FrontendURL: cfg.Reset.FrontendURL,
	}, serviceOptions(cfg)...)
	if err != nil {
		return Deps{}, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.RegisterMetrics(reg)

	return Deps{
		Log:        a.logger,
		Service:    service,
		Authorizer: middlewarectx.NewAuthorizer(maker, store, a.logger),
		Limiter:    middlewarectx.NewLimiter(cfg.RateLimit),
		Cookie:     cookie.NewRefresh(cfg.Cookie),
		Health:     checks,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// dispatcher выбирает доставку писем: напрямую по SMTP или через очередь.
func (a *App) dispatcher(ctx context.Context, cfg *config.Config) (authservice.Dispatcher, error) {
	if cfg.Notifications.Transport != "amqp" {
		transport := smtp.NewTransport(cfg.SMTP, a.logger)
		return sender.NewMailer(transport, cfg.SMTP.ForwardTo, a.logger), nil
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeAMQP(a.logger, "connection", conn.Close))
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeAMQP(a.logger, "channel", ch.Close))
	return sender.NewQueueDispatcher(rabbitmq.NewPublisher(ch, rabbitmq.NotificationsExchange)), nil
}

func closeAMQP(log *slog.Logger, what string, closeFn func() error) func() {
	return func() {
		if err := closeFn(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			log.Error("failed to close rabbitmq "+what, sl.Err(err))
		}
	}
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

// close освобождает ресурсы в обратном порядке.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// serviceOptions переводит флаги конфига в опции сервиса.
func serviceOptions(cfg *config.Config) []authservice.Option {
	var opts []authservice.Option
	if cfg.Notifications.WelcomeEmail {
		opts = append(opts, authservice.WithWelcomeEmail())
	}
	return opts
}
