package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/models"
)

// UserStore хранилище, которое оборачивает IdentityStore.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	GetIdentity(ctx context.Context, id string) (*models.PublicUser, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.PublicUser, error)
}

// IdentityStore кэширует GetIdentity в Redis. В кэш попадает только PublicUser.
// Любое изменение пользователя через UpdateUser увеличивает поколение записи
// и удаляет ключ до возврата, поэтому деактивация видна уже следующему запросу.
// Чтение, начатое до изменения, не может вернуть устаревшую запись в кэш:
// запись идёт только при неизменном поколении.
type IdentityStore struct {
	UserStore
	cache *Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewIdentityStore создаёт кэширующую обёртку.
func NewIdentityStore(store UserStore, cache *Cache, ttl time.Duration, log *slog.Logger) *IdentityStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &IdentityStore{UserStore: store, cache: cache, ttl: ttl, log: log}
}

func identityKey(id string) string {
	return "identity:" + id
}

func generationKey(id string) string {
	return "identity:gen:" + id
}

// GetIdentity возвращает identity из кэша или из хранилища.
// Ошибки Redis не прерывают запрос: чтение уходит в хранилище.
func (s *IdentityStore) GetIdentity(ctx context.Context, id string) (*models.PublicUser, error) {
	const op = "cache.IdentityStore.GetIdentity"

	var cached models.PublicUser
	found, err := s.cache.Get(ctx, identityKey(id), &cached)
	if err != nil {
		s.log.Warn("identity cache read failed", slog.String("op", op), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	// Поколение читается до обращения к хранилищу.
	gen, genErr := s.cache.Generation(ctx, generationKey(id))
	if genErr != nil {
		s.log.Warn("identity generation read failed", slog.String("op", op), sl.Err(genErr))
	}

	identity, err := s.UserStore.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return identity, nil
	}
	stored, err := s.cache.SetIfGeneration(ctx, generationKey(id), gen, identityKey(id), identity, s.ttl)
	if err != nil {
		s.log.Warn("identity cache write failed", slog.String("op", op), sl.Err(err))
	}
	if !stored {
		s.log.Debug("identity changed during read, not cached", slog.String("op", op), slog.String("user_id", id))
	}
	return identity, nil
}

// UpdateUser обновляет пользователя и сбрасывает его identity в кэше.
func (s *IdentityStore) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	const op = "cache.IdentityStore.UpdateUser"

	u, err := s.UserStore.UpdateUser(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if err = s.Invalidate(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// Invalidate сбрасывает identity пользователя: увеличивает поколение и удаляет ключ.
// Нужен и тем, кто меняет хранилище в обход UpdateUser.
func (s *IdentityStore) Invalidate(ctx context.Context, id string) error {
	const op = "cache.IdentityStore.Invalidate"

	if err := s.cache.Bump(ctx, generationKey(id)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(ctx, identityKey(id)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
