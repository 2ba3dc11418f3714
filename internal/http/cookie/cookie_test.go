package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auth-service/internal/config"
)

func TestRefresh_SetAndRead(t *testing.T) {
	c := NewRefresh(config.Cookie{Secure: true})

	rec := httptest.NewRecorder()
	c.Set(rec, "tok")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	got := cookies[0]
	assert.Equal(t, "refreshToken", got.Name)
	assert.Equal(t, "tok", got.Value)
	assert.True(t, got.HttpOnly)
	assert.True(t, got.Secure)
	assert.Equal(t, http.SameSiteStrictMode, got.SameSite)
	assert.Equal(t, 7*24*60*60, got.MaxAge)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(got)
	token, ok := c.Read(req)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
}

func TestRefresh_Clear(t *testing.T) {
	c := NewRefresh(config.Cookie{Name: "rt"})

	rec := httptest.NewRecorder()
	c.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "rt", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestRefresh_ReadMissing(t *testing.T) {
	c := NewRefresh(config.Cookie{})
	_, ok := c.Read(httptest.NewRequest(http.MethodPost, "/", nil))
	assert.False(t, ok)
}
