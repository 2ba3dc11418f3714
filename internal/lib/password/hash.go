// Package password реализует хэширование и проверку паролей.
//
// Hash создаёт солёный необратимый хэш выбранным алгоритмом (bcrypt или argon2id).
// Verify определяет алгоритм по префиксу хэша, поэтому смена алгоритма в конфиге
// не ломает вход пользователей со старыми хэшами.
package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Поддерживаемые алгоритмы.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// ErrEmptyPassword возвращается при попытке захэшировать пустой пароль.
var ErrEmptyPassword = errors.New("password cannot be empty")

// MaxBcryptBytes предел длины пароля для bcrypt в байтах.
const MaxBcryptBytes = 72

// ErrPasswordTooLong пароль длиннее, чем принимает bcrypt.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Hasher описывает примитив хэширования паролей.
type Hasher interface {
	Hash(password string) (string, error)
	// Verify возвращает false и для несовпадения, и для повреждённого хэша.
	Verify(password, digest string) bool
}

// Service хэширует выбранным алгоритмом и проверяет хэши любого поддерживаемого.
type Service struct {
	primary  Hasher
	bcrypt   *Bcrypt
	argon2id *Argon2id
}

// New создаёт Service для алгоритма из конфига.
func New(algorithm string, bcryptCost int) (*Service, error) {
	const op = "password.New"
	s := &Service{
		bcrypt:   NewBcrypt(bcryptCost),
		argon2id: NewArgon2id(),
	}
	switch algorithm {
	case AlgorithmBcrypt, "":
		s.primary = s.bcrypt
	case AlgorithmArgon2id:
		s.primary = s.argon2id
	default:
		return nil, fmt.Errorf("%s: unknown algorithm %q", op, algorithm)
	}
	return s, nil
}

// Hash хэширует пароль основным алгоритмом.
func (s *Service) Hash(password string) (string, error) {
	return s.primary.Hash(password)
}

// Verify проверяет пароль против хэша любого поддерживаемого алгоритма.
func (s *Service) Verify(password, digest string) bool {
	switch {
	case strings.HasPrefix(digest, argon2idPrefix):
		return s.argon2id.Verify(password, digest)
	case strings.HasPrefix(digest, "$2"):
		return s.bcrypt.Verify(password, digest)
	default:
		return false
	}
}

// Bcrypt реализует Hasher на bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt создаёт bcrypt-хэшер; некорректная стоимость заменяется на DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func (b *Bcrypt) Hash(password string) (string, error) {
	const op = "password.Bcrypt.Hash"
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > MaxBcryptBytes {
		return "", fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Verify сравнивает bcrypt‑хэш с введённым паролем.
func (b *Bcrypt) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
