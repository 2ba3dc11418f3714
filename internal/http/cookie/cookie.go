// Package cookie управляет cookie с refresh-токеном.
package cookie

import (
	"net/http"
	"time"

	"github.com/magabrotheeeer/auth-service/internal/config"
	"github.com/magabrotheeeer/auth-service/internal/lib/jwt"
)

// DefaultName имя cookie, если в настройках оно пустое.
const DefaultName = "refreshToken"

// Refresh читает и пишет cookie с refresh-токеном.
type Refresh struct {
	name   string
	secure bool
	maxAge time.Duration
}

// NewRefresh создает Refresh по настройкам cookie. Время жизни совпадает со сроком refresh-токена.
func NewRefresh(cfg config.Cookie) *Refresh {
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	return &Refresh{name: name, secure: cfg.Secure, maxAge: jwt.RefreshTokenTTL}
}

// Set выставляет http-only cookie с токеном.
func (c *Refresh) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear удаляет cookie на клиенте.
func (c *Refresh) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Read возвращает токен из запроса.
func (c *Refresh) Read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}
