package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/auth-service/internal/cache"
	"github.com/magabrotheeeer/auth-service/internal/config"
	"github.com/magabrotheeeer/auth-service/internal/lib/jwt"
	"github.com/magabrotheeeer/auth-service/internal/lib/password"
	"github.com/magabrotheeeer/auth-service/internal/models"
	authservice "github.com/magabrotheeeer/auth-service/internal/services/auth"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

var errMailDisabled = errors.New("mail delivery is disabled in authctl")

// noMail отклоняет отправку писем: утилите они не нужны.
type noMail struct{}

func (noMail) Send(context.Context, string, string, string, string) error {
	return errMailDisabled
}

// NewUserCmd создает команду user для управления учетными записями.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var email, role string
	activate := &cobra.Command{
		Use:   "activate",
		Short: "Allow the user to sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return setActive(cmd, email, true)
		},
	}
	deactivate := &cobra.Command{
		Use:   "deactivate",
		Short: "Block the user and revoke the refresh token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return setActive(cmd, email, false)
		},
	}
	setRole := &cobra.Command{
		Use:   "role",
		Short: "Change the user role (USER or ADMIN)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), func(ctx context.Context, s *authservice.Service) error {
				user, err := s.SetRole(ctx, email, models.Role(role))
				if err != nil {
					return err
				}
				cmd.Printf("user %s now has role %s\n", user.Email, user.Role)
				return nil
			})
		},
	}
	setRole.Flags().StringVar(&role, "role", "", "new role")
	_ = setRole.MarkFlagRequired("role")

	for _, c := range []*cobra.Command{activate, deactivate, setRole} {
		c.Flags().StringVar(&email, "email", "", "user email")
		_ = c.MarkFlagRequired("email")
		cmd.AddCommand(c)
	}
	return cmd
}

func setActive(cmd *cobra.Command, email string, active bool) error {
	return withService(cmd.Context(), func(ctx context.Context, s *authservice.Service) error {
		user, err := s.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if _, err = s.SetActive(ctx, user.ID, active); err != nil {
			return err
		}
		cmd.Printf("user %s active: %t\n", user.Email, active)
		return nil
	})
}

func withService(ctx context.Context, fn func(ctx context.Context, s *authservice.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "postgres" {
		return errors.New("user management requires the postgres storage driver")
	}

	db, err := storage.New(ctx, cfg.Storage.ConnectionString)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	s, closeFn, err := newService(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, s)
}

// newService собирает сервис над store. Если настроен Redis, изменения идут через
// кэш identity, чтобы деактивация сразу сбрасывала закэшированную запись.
func newService(ctx context.Context, cfg *config.Config, store cache.UserStore) (*authservice.Service, func(), error) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	closeFn := func() {}

	if cfg.RedisConnection.Address != "" {
		redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		closeFn = func() { _ = redisCache.Close() }
		store = cache.NewIdentityStore(store, redisCache, cfg.RedisConnection.IdentityTTL, log)
	}

	hasher, err := password.New(cfg.Password.Algorithm, cfg.Password.BcryptCost)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	maker := jwt.NewMaker(jwt.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	s, err := authservice.NewService(log, store, hasher, maker, noMail{}, authservice.ResetConfig{})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return s, closeFn, nil
}
