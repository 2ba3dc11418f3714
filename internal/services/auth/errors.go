package auth

import "errors"

var (
	// ErrInvalidCredentials неверный email или пароль. Не различает «нет пользователя» и «не тот пароль».
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized токен отсутствует, недействителен или пользователь деактивирован.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidOrExpiredToken refresh- или reset-токен не совпал либо истёк.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrDuplicateAccount email уже зарегистрирован.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrUserNotFound пользователь не найден (административные операции).
	ErrUserNotFound = errors.New("user not found")
	// ErrDelivery письмо не удалось отправить.
	ErrDelivery = errors.New("notification delivery failed")
	// ErrPasswordTooLong пароль длиннее, чем принимает хэшер.
	ErrPasswordTooLong = errors.New("password is too long")
	// ErrInvalidRole неизвестная роль.
	ErrInvalidRole = errors.New("invalid role")
)
