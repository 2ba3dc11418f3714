package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/auth-service/internal/lib/password"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/models"
)

// RefreshTokens выпускает refresh-токены и хранит только их хэш.
// Хэш считается от SHA-256 токена: JWT длиннее 72 байт, которые принимает bcrypt.
type RefreshTokens struct {
	log    *slog.Logger
	users  UserStore
	hasher password.Hasher
	issuer TokenIssuer
}

// NewRefreshTokens создаёт менеджер refresh-токенов.
func NewRefreshTokens(log *slog.Logger, users UserStore, hasher password.Hasher, issuer TokenIssuer) *RefreshTokens {
	return &RefreshTokens{log: log, users: users, hasher: hasher, issuer: issuer}
}

// GenerateAndStore выпускает refresh-токен, сохраняет его хэш поверх прежнего
// и возвращает сам токен. Открытый токен не сохраняется.
func (r *RefreshTokens) GenerateAndStore(ctx context.Context, userID string) (string, error) {
	const op = "auth.RefreshTokens.GenerateAndStore"

	token, err := r.issuer.IssueRefreshToken(userID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	digest, err := r.hasher.Hash(tokenDigest(token))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, err = r.users.UpdateUser(ctx, userID, models.UserUpdate{SessionTokenHash: &digest}); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// Validate сверяет предъявленный токен с сохранённым хэшем.
// Любая ошибка, отсутствие пользователя или хэша дают false.
func (r *RefreshTokens) Validate(ctx context.Context, userID, token string) bool {
	const op = "auth.RefreshTokens.Validate"

	if token == "" {
		return false
	}
	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		r.log.Debug("refresh token owner lookup failed", slog.String("op", op), sl.Err(err))
		return false
	}
	if user.SessionTokenHash == nil {
		return false
	}
	return r.hasher.Verify(tokenDigest(token), *user.SessionTokenHash)
}

// Revoke очищает сохранённый хэш.
func (r *RefreshTokens) Revoke(ctx context.Context, userID string) error {
	const op = "auth.RefreshTokens.Revoke"

	if _, err := r.users.UpdateUser(ctx, userID, models.UserUpdate{ClearSessionToken: true}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
