package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/storage"
	"github.com/magabrotheeeer/auth-service/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// countingStore считает обращения к GetIdentity нижележащего хранилища.
type countingStore struct {
	*memory.Storage
	identityCalls int
}

func (c *countingStore) GetIdentity(ctx context.Context, id string) (*models.PublicUser, error) {
	c.identityCalls++
	return c.Storage.GetIdentity(ctx, id)
}

func setupIdentityStore(t *testing.T) (*IdentityStore, *countingStore) {
	t.Helper()
	cache, _ := setupTestCache(t)
	base := &countingStore{Storage: memory.New()}
	_, err := base.CreateUser(context.Background(), models.User{
		ID: "u-1", Email: "alice@x", PasswordHash: "secret-hash", Name: "Alice",
		Role: models.RoleUser, IsActive: true,
	})
	require.NoError(t, err)
	return NewIdentityStore(base, cache, time.Minute, newNoopLogger()), base
}

func TestIdentityStore_CachesIdentity(t *testing.T) {
	store, base := setupIdentityStore(t)
	ctx := context.Background()

	first, err := store.GetIdentity(ctx, "u-1")
	require.NoError(t, err)
	second, err := store.GetIdentity(ctx, "u-1")
	require.NoError(t, err)

	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, 1, base.identityCalls)

	raw, err := store.cache.Db.Get(ctx, identityKey("u-1")).Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret-hash")
}

func TestIdentityStore_UpdateInvalidates(t *testing.T) {
	store, base := setupIdentityStore(t)
	ctx := context.Background()

	identity, err := store.GetIdentity(ctx, "u-1")
	require.NoError(t, err)
	require.True(t, identity.IsActive)

	inactive := false
	_, err = store.UpdateUser(ctx, "u-1", models.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)

	identity, err = store.GetIdentity(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, identity.IsActive)
	assert.Equal(t, 2, base.identityCalls)
}

func TestIdentityStore_MissingUserNotCached(t *testing.T) {
	store, base := setupIdentityStore(t)
	ctx := context.Background()

	_, err := store.GetIdentity(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrUserNotFound)
	_, err = store.GetIdentity(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.Equal(t, 2, base.identityCalls)
}

func TestIdentityStore_FallsBackWhenRedisDown(t *testing.T) {
	cache, mr := setupTestCache(t)
	base := &countingStore{Storage: memory.New()}
	_, err := base.CreateUser(context.Background(), models.User{ID: "u-1", Email: "a@x", Role: models.RoleUser, IsActive: true})
	require.NoError(t, err)
	store := NewIdentityStore(base, cache, time.Minute, newNoopLogger())

	mr.Close()

	identity, err := store.GetIdentity(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x", identity.Email)
}

// interleavingStore выполняет onRead после чтения из хранилища, но до записи в кэш.
type interleavingStore struct {
	*memory.Storage
	onRead func()
}

func (s *interleavingStore) GetIdentity(ctx context.Context, id string) (*models.PublicUser, error) {
	identity, err := s.Storage.GetIdentity(ctx, id)
	if s.onRead != nil {
		hook := s.onRead
		s.onRead = nil
		hook()
	}
	return identity, err
}

func TestIdentityStore_DeactivationDuringReadNotCached(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()
	base := &interleavingStore{Storage: memory.New()}
	_, err := base.CreateUser(ctx, models.User{ID: "u-1", Email: "a@x", Role: models.RoleUser, IsActive: true})
	require.NoError(t, err)
	store := NewIdentityStore(base, cache, time.Minute, newNoopLogger())

	inactive := false
	base.onRead = func() {
		_, err := store.UpdateUser(ctx, "u-1", models.UserUpdate{IsActive: &inactive})
		require.NoError(t, err)
	}

	// Чтение началось до деактивации и видит старое состояние.
	identity, err := store.GetIdentity(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, identity.IsActive)
	assert.False(t, cache.Db.Exists(ctx, identityKey("u-1")).Val() == 1)

	identity, err = store.GetIdentity(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, identity.IsActive)
}

func TestIdentityStore_InvalidateAfterDirectWrite(t *testing.T) {
	store, base := setupIdentityStore(t)
	ctx := context.Background()

	identity, err := store.GetIdentity(ctx, "u-1")
	require.NoError(t, err)
	require.True(t, identity.IsActive)

	// Запись мимо обёртки, затем явный сброс.
	inactive := false
	_, err = base.Storage.UpdateUser(ctx, "u-1", models.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)
	require.NoError(t, store.Invalidate(ctx, "u-1"))

	identity, err = store.GetIdentity(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, identity.IsActive)
}

func TestCache_SetIfGeneration(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	gen, err := cache.Generation(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	stored, err := cache.SetIfGeneration(ctx, "gen", gen, "k", "v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	require.NoError(t, cache.Bump(ctx, "gen"))
	stored, err = cache.SetIfGeneration(ctx, "gen", gen, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	var got string
	found, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", got)
}
