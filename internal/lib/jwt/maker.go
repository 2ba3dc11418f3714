// Package jwt реализует выпуск и проверку access- и refresh-токенов.
//
// Maker создаётся из неизменяемого Config: секреты и срок жизни задаются
// один раз при старте процесса и не меняются. Access- и refresh-токены
// подписываются разными секретами, поэтому один не проходит проверку как другой.
package jwt

import (
	"errors"
	"time"
)

// DefaultAccessTTL используется, если срок жизни access-токена не задан.
const DefaultAccessTTL = 15 * time.Minute

// RefreshTokenTTL фиксированный срок жизни refresh-токена.
const RefreshTokenTTL = 7 * 24 * time.Hour

var (
	// ErrInvalidToken подпись, формат или алгоритм токена некорректны.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken срок действия токена истёк.
	ErrExpiredToken = errors.New("token has expired")
)

// Config параметры подписи.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	Issuer        string
}

// Maker выпускает и проверяет токены.
type Maker struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	issuer        string
	now           func() time.Time
}

// NewMaker создаёт Maker из конфигурации.
func NewMaker(cfg Config) *Maker {
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &Maker{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     ttl,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
}

// AccessTTL срок жизни выпускаемых access-токенов.
func (m *Maker) AccessTTL() time.Duration {
	return m.accessTTL
}
