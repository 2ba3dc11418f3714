package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_PublicOmitsSecrets(t *testing.T) {
	session := "session-hash"
	u := User{
		ID: "u-1", Email: "alice@x", PasswordHash: "pw-hash", Name: "Alice",
		Role: RoleUser, IsActive: true, SessionTokenHash: &session,
		PasswordReset: &PasswordResetChallenge{TokenHash: "reset-hash", ExpiresAt: time.Now()},
	}

	data, err := json.Marshal(u.Public())
	require.NoError(t, err)

	body := string(data)
	assert.NotContains(t, body, "pw-hash")
	assert.NotContains(t, body, "session-hash")
	assert.NotContains(t, body, "reset-hash")
	assert.Contains(t, body, `"email":"alice@x"`)
	assert.Contains(t, body, `"role":"USER"`)
}

func TestUserUpdate_Apply(t *testing.T) {
	session := "old"
	base := User{ID: "u-1", PasswordHash: "h", Role: RoleUser, IsActive: true, SessionTokenHash: &session}

	newHash := "new"
	admin := RoleAdmin
	inactive := false
	challenge := &PasswordResetChallenge{TokenHash: "r", ExpiresAt: time.Unix(100, 0)}

	got := UserUpdate{PasswordHash: &newHash, Role: &admin, IsActive: &inactive, PasswordReset: challenge}.Apply(base)
	assert.Equal(t, "new", got.PasswordHash)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.PasswordReset)
	assert.NotSame(t, challenge, got.PasswordReset)
	assert.Equal(t, "old", *got.SessionTokenHash)

	cleared := UserUpdate{ClearSessionToken: true, ClearPasswordReset: true}.Apply(got)
	assert.Nil(t, cleared.SessionTokenHash)
	assert.Nil(t, cleared.PasswordReset)
	assert.Equal(t, "old", session, "apply must not mutate the caller's pointers")
}

func TestUserUpdate_Empty(t *testing.T) {
	assert.True(t, UserUpdate{}.Empty())
	assert.False(t, UserUpdate{ClearSessionToken: true}.Empty())
}

func TestPasswordResetChallenge_ExpiredAt(t *testing.T) {
	expires := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &PasswordResetChallenge{ExpiresAt: expires}

	assert.False(t, c.ExpiredAt(expires.Add(-time.Second)))
	assert.False(t, c.ExpiredAt(expires), "token is still valid at the exact expiry instant")
	assert.True(t, c.ExpiredAt(expires.Add(time.Nanosecond)))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("user").Valid())
}
