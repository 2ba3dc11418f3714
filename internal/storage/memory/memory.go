// Package memory реализует хранилище учётных записей в памяти процесса.
// Используется в тестах и при storage.driver: memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

// Storage хранит пользователей в map под RWMutex.
type Storage struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
	now     func() time.Time
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// CreateUser сохраняет нового пользователя; email должен быть уникален.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "memory.CreateUser"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
	}
	if _, ok := s.byID[user.ID]; ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
	}
	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := clone(user)
	s.byID[user.ID] = &stored
	s.byEmail[user.Email] = user.ID

	out := clone(stored)
	return &out, nil
}

// GetUserByEmail возвращает копию пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "memory.GetUserByEmail"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	out := clone(*s.byID[id])
	return &out, nil
}

// GetUserByID возвращает копию пользователя по идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "memory.GetUserByID"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	out := clone(*u)
	return &out, nil
}

// GetIdentity возвращает публичное представление пользователя.
func (s *Storage) GetIdentity(ctx context.Context, id string) (*models.PublicUser, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

// ListUsers возвращает страницу пользователей, упорядоченных по времени создания и id.
func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.PublicUser, error) {
	const op = "memory.ListUsers"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	all := make([]*models.PublicUser, 0, len(s.byID))
	for _, u := range s.byID {
		all = append(all, u.Public())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	if offset >= len(all) {
		return []*models.PublicUser{}, nil
	}
	end := len(all)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

// UpdateUser атомарно применяет частичное обновление к записи.
func (s *Storage) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	const op = "memory.UpdateUser"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	updated := upd.Apply(*u)
	if !upd.Empty() {
		updated.UpdatedAt = s.now().UTC()
	}
	stored := clone(updated)
	s.byID[id] = &stored

	out := clone(stored)
	return &out, nil
}

// clone копирует пользователя вместе с указателями, чтобы вызывающий не менял состояние хранилища.
func clone(u models.User) models.User {
	if u.SessionTokenHash != nil {
		h := *u.SessionTokenHash
		u.SessionTokenHash = &h
	}
	if u.PasswordReset != nil {
		c := *u.PasswordReset
		u.PasswordReset = &c
	}
	return u
}
