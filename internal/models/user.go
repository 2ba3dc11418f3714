// Package models содержит доменную модель пользователя сервиса аутентификации:
// учётные данные, роль, флаг активности, хэш refresh-токена и запрос на сброс пароля.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// Role перечисляет роли пользователя.
type Role string

const (
	// RoleUser роль по умолчанию при регистрации.
	RoleUser Role = "USER"
	// RoleAdmin администратор.
	RoleAdmin Role = "ADMIN"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// PasswordResetChallenge описывает активный одноразовый запрос на сброс пароля.
type PasswordResetChallenge struct {
	TokenHash string    // SHA-256 от выданного токена, hex
	ExpiresAt time.Time // после этого момента токен недействителен
}

// ExpiredAt сообщает, истёк ли запрос к моменту now.
func (c *PasswordResetChallenge) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID               string                  // Уникальный идентификатор пользователя
	Email            string                  // Электронная почта, уникальна
	PasswordHash     string                  // Хэш пароля, наружу не отдаётся
	Name             string                  // Отображаемое имя
	Role             Role                    // USER или ADMIN
	IsActive         bool                    // Неактивный пользователь не проходит авторизацию
	SessionTokenHash *string                 // Хэш текущего refresh-токена
	PasswordReset    *PasswordResetChallenge // Активный запрос на сброс пароля
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicUser представление пользователя, которое можно отдавать наружу.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Public возвращает пользователя без хэша пароля и токенов.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserUpdate частичное обновление записи пользователя.
// Nil-поля не изменяются. Флаги Clear* обнуляют соответствующий слот.
type UserUpdate struct {
	PasswordHash       *string
	Role               *Role
	IsActive           *bool
	SessionTokenHash   *string
	ClearSessionToken  bool
	PasswordReset      *PasswordResetChallenge
	ClearPasswordReset bool
}

// Apply применяет обновление к копии пользователя и возвращает результат.
func (upd UserUpdate) Apply(u User) User {
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if upd.SessionTokenHash != nil {
		h := *upd.SessionTokenHash
		u.SessionTokenHash = &h
	}
	if upd.ClearSessionToken {
		u.SessionTokenHash = nil
	}
	if upd.PasswordReset != nil {
		c := *upd.PasswordReset
		u.PasswordReset = &c
	}
	if upd.ClearPasswordReset {
		u.PasswordReset = nil
	}
	return u
}

// Empty сообщает, что обновление ничего не меняет.
func (upd UserUpdate) Empty() bool {
	return upd.PasswordHash == nil && upd.Role == nil && upd.IsActive == nil &&
		upd.SessionTokenHash == nil && !upd.ClearSessionToken &&
		upd.PasswordReset == nil && !upd.ClearPasswordReset
}
