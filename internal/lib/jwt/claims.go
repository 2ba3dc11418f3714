package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims данные access-токена. Идентификатор пользователя лежит в Subject.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims содержат только стандартные поля; пользователь в Subject.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// IssueAccessToken создаёт access-токен с sub, email и role.
func (m *Maker) IssueAccessToken(userID, email, role string) (string, error) {
	const op = "jwt.IssueAccessToken"
	now := m.now()
	claims := AccessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: m.registered(userID, now, m.accessTTL),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// VerifyAccessToken проверяет подпись и срок действия access-токена.
func (m *Maker) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	const op = "jwt.VerifyAccessToken"
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, m.accessSecret); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// IssueRefreshToken создаёт refresh-токен, содержащий только sub.
func (m *Maker) IssueRefreshToken(userID string) (string, error) {
	const op = "jwt.IssueRefreshToken"
	claims := RefreshClaims{RegisteredClaims: m.registered(userID, m.now(), RefreshTokenTTL)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// VerifyRefreshToken проверяет refresh-токен и возвращает идентификатор пользователя.
func (m *Maker) VerifyRefreshToken(tokenStr string) (string, error) {
	const op = "jwt.VerifyRefreshToken"
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.refreshSecret); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return claims.Subject, nil
}

func (m *Maker) registered(userID string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *Maker) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return ErrInvalidToken
	}
	return nil
}
