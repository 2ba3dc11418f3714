package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/auth-service/internal/lib/password"
	"github.com/magabrotheeeer/auth-service/internal/metrics"
	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

const (
	resetTokenBytes = 32
	resetSubject    = "Password Reset Request"
)

// RequestReset выдаёт одноразовый токен сброса и отправляет ссылку на почту.
// Для неизвестного email возвращает nil без побочных эффектов.
// Ошибка доставки оборачивает ErrDelivery; токен к этому моменту уже сохранён.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	const op = "auth.RequestReset"

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		metrics.RecordPasswordReset(metrics.StageRequest, metrics.ResultSuccess)
		return nil
	}
	if err != nil {
		metrics.RecordPasswordReset(metrics.StageRequest, metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}

	token, tokenHash, err := generateResetToken()
	if err != nil {
		metrics.RecordPasswordReset(metrics.StageRequest, metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}
	challenge := &models.PasswordResetChallenge{
		TokenHash: tokenHash,
		ExpiresAt: s.now().Add(s.reset.TokenTTL),
	}
	if _, err = s.users.UpdateUser(ctx, user.ID, models.UserUpdate{PasswordReset: challenge}); err != nil {
		metrics.RecordPasswordReset(metrics.StageRequest, metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}

	link := s.resetLink(token, user.ID)
	text := fmt.Sprintf("You requested a password reset. Click here to reset your password: %s", link)
	html := fmt.Sprintf(`<p>You requested a password reset.</p><p>Click <a href="%s">here</a> to reset your password.</p><p>This link will expire in %s.</p>`,
		link, humanDuration(s.reset.TokenTTL))
	if err = s.mailer.Send(ctx, user.Email, resetSubject, text, html); err != nil {
		metrics.RecordPasswordReset(metrics.StageRequest, metrics.ResultError)
		return fmt.Errorf("%s: %w: %w", op, ErrDelivery, err)
	}

	s.log.Info("password reset requested", slog.String("op", op), slog.String("user_id", user.ID))
	metrics.RecordPasswordReset(metrics.StageRequest, metrics.ResultSuccess)
	return nil
}

// CompleteReset меняет пароль по действующему токену, гасит токен и отзывает
// текущую сессию: refresh-токены, выданные до сброса, больше не принимаются.
// Повторное использование, чужой токен или истёкший срок дают ErrInvalidOrExpiredToken.
func (s *Service) CompleteReset(ctx context.Context, token, newPassword, userID string) error {
	const op = "auth.CompleteReset"

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		metrics.RecordPasswordReset(metrics.StageComplete, metrics.ResultFailure)
		return fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
	}
	if err != nil {
		metrics.RecordPasswordReset(metrics.StageComplete, metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resetTokenMatches(user.PasswordReset, token) || user.PasswordReset.ExpiredAt(s.now()) {
		metrics.RecordPasswordReset(metrics.StageComplete, metrics.ResultFailure)
		return fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if errors.Is(err, password.ErrPasswordTooLong) {
		metrics.RecordPasswordReset(metrics.StageComplete, metrics.ResultFailure)
		return fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
	}
	if err != nil {
		metrics.RecordPasswordReset(metrics.StageComplete, metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err = s.users.UpdateUser(ctx, userID, models.UserUpdate{
		PasswordHash:       &hashed,
		ClearPasswordReset: true,
		ClearSessionToken:  true,
	}); err != nil {
		metrics.RecordPasswordReset(metrics.StageComplete, metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("password reset completed", slog.String("op", op), slog.String("user_id", userID))
	metrics.RecordPasswordReset(metrics.StageComplete, metrics.ResultSuccess)
	return nil
}

func (s *Service) resetLink(token, userID string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("id", userID)
	return strings.TrimRight(s.reset.FrontendURL, "/") + "/reset-password?" + q.Encode()
}

// generateResetToken возвращает случайный токен и его SHA-256 для хранения.
func generateResetToken() (token, hash string, err error) {
	b := make([]byte, resetTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, tokenDigest(token), nil
}

func resetTokenMatches(challenge *models.PasswordResetChallenge, token string) bool {
	if challenge == nil || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(tokenDigest(token)), []byte(challenge.TokenHash)) == 1
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d > time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}
