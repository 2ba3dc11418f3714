package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auth-service/internal/models"
)

var userCols = []string{
	"id", "email", "password_hash", "name", "role", "is_active",
	"session_token_hash", "reset_token_hash", "reset_expires_at", "created_at", "updated_at",
}

const testID = "0f8b9a2e-4c1d-4e6a-9b7f-3d2c1a0e5f64"

func strPtr(s string) *string { return &s }

func userRow(created time.Time, session, resetHash *string, resetAt *time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(userCols).AddRow(
		testID, "alice@x", "hash", "Alice", "USER", true,
		session, resetHash, resetAt, created, created,
	)
}

func newMockStorage(t *testing.T) (*Storage, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return NewWithDB(mock), mock
}

func TestStorage_CreateUser(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	input := models.User{
		ID: testID, Email: "alice@x", PasswordHash: "hash", Name: "Alice",
		Role: models.RoleUser, IsActive: true,
	}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "success",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs(testID, "alice@x", "hash", "Alice", "USER", true).
					WillReturnRows(userRow(created, nil, nil, nil))
			},
		},
		{
			name: "duplicate email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs(testID, "alice@x", "hash", "Alice", "USER", true).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: ErrUserExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)
			tt.setupMock(mock)

			got, err := s.CreateUser(context.Background(), input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, testID, got.ID)
				assert.Equal(t, models.RoleUser, got.Role)
				assert.True(t, got.IsActive)
				assert.Nil(t, got.SessionTokenHash)
				assert.Nil(t, got.PasswordReset)
				assert.Equal(t, created, got.CreatedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStorage_GetUserByEmail(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	resetAt := created.Add(time.Hour)

	t.Run("found with session and reset challenge", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("alice@x").
			WillReturnRows(userRow(created, strPtr("session-hash"), strPtr("reset-hash"), &resetAt))

		got, err := s.GetUserByEmail(context.Background(), "alice@x")
		require.NoError(t, err)
		require.NotNil(t, got.SessionTokenHash)
		assert.Equal(t, "session-hash", *got.SessionTokenHash)
		require.NotNil(t, got.PasswordReset)
		assert.Equal(t, "reset-hash", got.PasswordReset.TokenHash)
		assert.Equal(t, resetAt, got.PasswordReset.ExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("nobody@x").
			WillReturnError(pgx.ErrNoRows)

		got, err := s.GetUserByEmail(context.Background(), "nobody@x")
		require.ErrorIs(t, err, ErrUserNotFound)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("alice@x").
			WillReturnError(errors.New("connection refused"))

		_, err := s.GetUserByEmail(context.Background(), "alice@x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUserNotFound)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorage_GetIdentity(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, mock := newMockStorage(t)
	mock.ExpectQuery(`SELECT id::text, email, name, role, is_active, created_at, updated_at\s+FROM users WHERE id = \$1`).
		WithArgs(testID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "role", "is_active", "created_at", "updated_at"}).
			AddRow(testID, "alice@x", "Alice", "ADMIN", false, created, created))

	got, err := s.GetIdentity(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, &models.PublicUser{
		ID: testID, Email: "alice@x", Name: "Alice", Role: models.RoleAdmin,
		IsActive: false, CreatedAt: created, UpdatedAt: created,
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_UpdateUser(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := created.Add(time.Hour)
	inactive := false

	tests := []struct {
		name      string
		upd       models.UserUpdate
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "set session hash",
			upd:  models.UserUpdate{SessionTokenHash: strPtr("h1")},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`UPDATE users SET session_token_hash = \$1, updated_at = now\(\) WHERE id = \$2`).
					WithArgs("h1", testID).
					WillReturnRows(userRow(created, strPtr("h1"), nil, nil))
			},
		},
		{
			name: "clear session hash",
			upd:  models.UserUpdate{ClearSessionToken: true},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`UPDATE users SET session_token_hash = NULL, updated_at = now\(\) WHERE id = \$1`).
					WithArgs(testID).
					WillReturnRows(userRow(created, nil, nil, nil))
			},
		},
		{
			name: "store reset challenge",
			upd: models.UserUpdate{PasswordReset: &models.PasswordResetChallenge{
				TokenHash: "rh", ExpiresAt: expires,
			}},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`UPDATE users SET reset_token_hash = \$1, reset_expires_at = \$2, updated_at = now\(\) WHERE id = \$3`).
					WithArgs("rh", expires, testID).
					WillReturnRows(userRow(created, nil, strPtr("rh"), &expires))
			},
		},
		{
			name: "replace password and clear reset",
			upd:  models.UserUpdate{PasswordHash: strPtr("new"), ClearPasswordReset: true},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`UPDATE users SET password_hash = \$1, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = now\(\) WHERE id = \$2`).
					WithArgs("new", testID).
					WillReturnRows(userRow(created, nil, nil, nil))
			},
		},
		{
			name: "deactivate missing user",
			upd:  models.UserUpdate{IsActive: &inactive},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`UPDATE users SET is_active = \$1`).
					WithArgs(false, testID).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)
			tt.setupMock(mock)

			got, err := s.UpdateUser(context.Background(), testID, tt.upd)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, testID, got.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStorage_UpdateUser_EmptyUpdateReads(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, mock := newMockStorage(t)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(testID).
		WillReturnRows(userRow(created, nil, nil, nil))

	got, err := s.UpdateUser(context.Background(), testID, models.UserUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "alice@x", got.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_InvalidIDIsNotFound(t *testing.T) {
	inactive := false
	s, mock := newMockStorage(t)
	ctx := context.Background()

	_, err := s.GetUserByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = s.GetIdentity(ctx, "not-a-uuid")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = s.UpdateUser(ctx, "not-a-uuid", models.UserUpdate{IsActive: &inactive})
	require.ErrorIs(t, err, ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_ListUsers(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"id", "email", "name", "role", "is_active", "created_at", "updated_at"}

	t.Run("page", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery(`SELECT id::text, email, name, role, is_active, created_at, updated_at\s+FROM users ORDER BY created_at, id LIMIT \$1 OFFSET \$2`).
			WithArgs(2, 10).
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow(testID, "alice@x", "Alice", "ADMIN", true, created, created).
				AddRow("5b0c6a55-9d3c-4e0f-8a51-0c1f0f3b1e22", "bob@x", "Bob", "USER", false, created, created))

		got, err := s.ListUsers(context.Background(), 2, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, models.RoleAdmin, got[0].Role)
		assert.Equal(t, "bob@x", got[1].Email)
		assert.False(t, got[1].IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery(`FROM users ORDER BY created_at, id`).
			WithArgs(50, 0).
			WillReturnRows(pgxmock.NewRows(cols))

		got, err := s.ListUsers(context.Background(), 50, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NotNil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery(`FROM users ORDER BY created_at, id`).
			WithArgs(50, 0).
			WillReturnError(errors.New("connection refused"))

		_, err := s.ListUsers(context.Background(), 50, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
