// Package auth содержит бизнес-логику аутентификации: регистрацию, проверку
// учётных данных, выпуск и ротацию токенов, выход и сброс пароля.
//
// Пакет не знает про HTTP: граница получает отсюда типизированные ошибки
// (ErrInvalidCredentials, ErrUnauthorized, ErrInvalidOrExpiredToken,
// ErrDuplicateAccount) и сама решает, как их отдать клиенту.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/auth-service/internal/lib/jwt"
	"github.com/magabrotheeeer/auth-service/internal/lib/password"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/metrics"
	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

const welcomeSubject = "Welcome to our platform!"

// UserStore описывает контракт хранилища пользователей.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.PublicUser, error)
}

// TokenIssuer выпускает и проверяет подписанные токены.
type TokenIssuer interface {
	IssueAccessToken(userID, email, role string) (string, error)
	VerifyAccessToken(token string) (*jwt.AccessClaims, error)
	IssueRefreshToken(userID string) (string, error)
	VerifyRefreshToken(token string) (string, error)
}

// Dispatcher доставляет письма. Повторных попыток сервис не делает.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// ResetConfig параметры сброса пароля.
type ResetConfig struct {
	TokenTTL    time.Duration
	FrontendURL string
}

// LoginResult результат входа: access-токен и публичное представление пользователя.
type LoginResult struct {
	AccessToken string             `json:"access_token"`
	User        *models.PublicUser `json:"user"`
}

// Session результат обмена refresh-токена.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *models.PublicUser
}

// Service оркестрирует хранилище, хэшер, выпуск токенов и отправку писем.
type Service struct {
	log     *slog.Logger
	users   UserStore
	hasher  password.Hasher
	issuer  TokenIssuer
	refresh *RefreshTokens
	mailer  Dispatcher
	reset   ResetConfig
	now     func() time.Time
	welcome bool
	// dummyHash сравнивается при входе с неизвестным email, чтобы время ответа не выдавало наличие аккаунта.
	dummyHash string
}

// Option настраивает Service.
type Option func(*Service)

// WithWelcomeEmail включает приветственное письмо после регистрации.
func WithWelcomeEmail() Option {
	return func(s *Service) { s.welcome = true }
}

// NewService создает новый экземпляр Service.
func NewService(
	log *slog.Logger,
	users UserStore,
	hasher password.Hasher,
	issuer TokenIssuer,
	mailer Dispatcher,
	reset ResetConfig,
	opts ...Option,
) (*Service, error) {
	const op = "auth.NewService"

	if reset.TokenTTL <= 0 {
		reset.TokenTTL = time.Hour
	}
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	dummy, err := hasher.Hash(hex.EncodeToString(seed))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s := &Service{
		log:       log,
		users:     users,
		hasher:    hasher,
		issuer:    issuer,
		refresh:   NewRefreshTokens(log, users, hasher, issuer),
		mailer:    mailer,
		reset:     reset,
		now:       time.Now,
		dummyHash: dummy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RefreshTokens возвращает менеджер refresh-токенов.
func (s *Service) RefreshTokens() *RefreshTokens {
	return s.refresh
}

// Register создает пользователя с ролью USER. Повторный email даёт ErrDuplicateAccount.
// С WithWelcomeEmail пользователю уходит приветствие; сбой отправки только логируется.
func (s *Service) Register(ctx context.Context, email, rawPassword, name string) (*models.PublicUser, error) {
	const op = "auth.Register"

	hashed, err := s.hasher.Hash(rawPassword)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hashed,
		Name:         name,
		Role:         models.RoleUser,
		IsActive:     true,
	})
	if errors.Is(err, storage.ErrUserExists) {
		return nil, fmt.Errorf("%s: %w", op, ErrDuplicateAccount)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.welcome {
		s.sendWelcome(ctx, user)
	}
	return user.Public(), nil
}

func (s *Service) sendWelcome(ctx context.Context, user *models.User) {
	const op = "auth.sendWelcome"

	name := user.Name
	if name == "" {
		name = user.Email
	}
	text := fmt.Sprintf("Welcome to our platform, %s!", name)
	body := fmt.Sprintf("<p>Welcome to our platform, %s!</p><p>We are excited to have you.</p>", html.EscapeString(name))
	if err := s.mailer.Send(ctx, user.Email, welcomeSubject, text, body); err != nil {
		s.log.Warn("failed to send welcome email", slog.String("op", op), slog.String("user_id", user.ID), sl.Err(err))
	}
}

// ListUsers возвращает страницу публичных представлений пользователей.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*models.PublicUser, error) {
	const op = "auth.ListUsers"

	users, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		s.log.Error("failed to list users", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// ValidateCredentials ищет пользователя по email и проверяет пароль.
// Отсутствие пользователя и неверный пароль одинаково дают ErrInvalidCredentials.
func (s *Service) ValidateCredentials(ctx context.Context, email, rawPassword string) (*models.PublicUser, error) {
	const op = "auth.ValidateCredentials"

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		s.hasher.Verify(rawPassword, s.dummyHash)
		metrics.RecordLogin(metrics.ResultFailure)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !s.hasher.Verify(rawPassword, user.PasswordHash) {
		metrics.RecordLogin(metrics.ResultFailure)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	return user.Public(), nil
}

// Login выпускает access-токен для проверенного пользователя.
// Refresh-токен вызывающий выпускает отдельно через RefreshTokens().GenerateAndStore:
// шаги не атомарны, при сбое между ними пользователь просто входит заново.
func (s *Service) Login(_ context.Context, user *models.PublicUser) (*LoginResult, error) {
	const op = "auth.Login"

	if !user.IsActive {
		metrics.RecordLogin(metrics.ResultFailure)
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	token, err := s.issuer.IssueAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordLogin(metrics.ResultSuccess)
	return &LoginResult{AccessToken: token, User: user}, nil
}

// Refresh обменивает refresh-токен на новый access-токен и ротирует refresh-токен.
// Предъявленный токен после успешного обмена перестаёт проходить проверку.
func (s *Service) Refresh(ctx context.Context, presented string) (*Session, error) {
	const op = "auth.Refresh"

	userID, err := s.issuer.VerifyRefreshToken(presented)
	if err != nil {
		metrics.RecordRefresh(metrics.ResultFailure)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
	}
	if !s.refresh.Validate(ctx, userID, presented) {
		metrics.RecordRefresh(metrics.ResultFailure)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil || !user.IsActive {
		metrics.RecordRefresh(metrics.ResultFailure)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
	}

	access, err := s.issuer.IssueAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		metrics.RecordRefresh(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rotated, err := s.refresh.GenerateAndStore(ctx, user.ID)
	if err != nil {
		metrics.RecordRefresh(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordRefresh(metrics.ResultSuccess)
	return &Session{AccessToken: access, RefreshToken: rotated, User: user.Public()}, nil
}

// Logout отзывает refresh-токен пользователя.
func (s *Service) Logout(ctx context.Context, userID string) error {
	const op = "auth.Logout"

	if err := s.refresh.Revoke(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LogoutByRefreshToken отзывает сессию, которой принадлежит предъявленный refresh-токен.
// Устаревший или чужой токен ничего не отзывает и ошибкой не считается.
func (s *Service) LogoutByRefreshToken(ctx context.Context, presented string) error {
	const op = "auth.LogoutByRefreshToken"

	userID, err := s.issuer.VerifyRefreshToken(presented)
	if err != nil {
		return nil
	}
	if !s.refresh.Validate(ctx, userID, presented) {
		return nil
	}
	if err = s.Logout(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetActive включает или выключает пользователя. Выключение также отзывает его refresh-токен.
func (s *Service) SetActive(ctx context.Context, userID string, active bool) (*models.PublicUser, error) {
	const op = "auth.SetActive"

	upd := models.UserUpdate{IsActive: &active}
	if !active {
		upd.ClearSessionToken = true
	}
	user, err := s.users.UpdateUser(ctx, userID, upd)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user activity changed", slog.String("op", op), slog.String("user_id", userID), slog.Bool("active", active))
	return user.Public(), nil
}

// SetRole меняет роль пользователя, найденного по email.
func (s *Service) SetRole(ctx context.Context, email string, role models.Role) (*models.PublicUser, error) {
	const op = "auth.SetRole"

	if !role.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	updated, err := s.users.UpdateUser(ctx, user.ID, models.UserUpdate{Role: &role})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user role changed", slog.String("op", op), slog.String("user_id", user.ID), slog.String("role", string(role)))
	return updated.Public(), nil
}

// FindByEmail возвращает публичное представление пользователя по email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.PublicUser, error) {
	const op = "auth.FindByEmail"

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		s.log.Error("failed to load user", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user.Public(), nil
}
