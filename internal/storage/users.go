package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/auth-service/internal/models"
)

const userColumns = `id::text, email, password_hash, name, role, is_active, ` +
	`session_token_hash, reset_token_hash, reset_expires_at, created_at, updated_at`

// CreateUser сохраняет нового пользователя и возвращает сохранённую запись.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"

	query := `INSERT INTO users (id, email, password_hash, name, role, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING ` + userColumns
	row := s.db.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name, string(user.Role), user.IsActive)
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email. Сравнение чувствительно к регистру.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUserByID"

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.db.QueryRow(ctx, query, uid.String()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetIdentity возвращает публичное представление пользователя для авторизации запроса.
func (s *Storage) GetIdentity(ctx context.Context, id string) (*models.PublicUser, error) {
	const op = "storage.GetIdentity"

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	query := `SELECT id::text, email, name, role, is_active, created_at, updated_at
			  FROM users WHERE id = $1`
	var (
		p    models.PublicUser
		role string
	)
	err = s.db.QueryRow(ctx, query, uid.String()).Scan(&p.ID, &p.Email, &p.Name, &role, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	p.Role = models.Role(role)
	return &p, nil
}

// ListUsers возвращает страницу пользователей в порядке регистрации.
func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.PublicUser, error) {
	const op = "storage.ListUsers"

	query := `SELECT id::text, email, name, role, is_active, created_at, updated_at
			  FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := make([]*models.PublicUser, 0, limit)
	for rows.Next() {
		var (
			p    models.PublicUser
			role string
		)
		if err := rows.Scan(&p.ID, &p.Email, &p.Name, &role, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p.Role = models.Role(role)
		users = append(users, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// UpdateUser применяет частичное обновление одной строкой UPDATE.
func (s *Storage) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	const op = "storage.UpdateUser"

	if upd.Empty() {
		return s.GetUserByID(ctx, id)
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.PasswordHash != nil {
		set("password_hash", *upd.PasswordHash)
	}
	if upd.Role != nil {
		set("role", string(*upd.Role))
	}
	if upd.IsActive != nil {
		set("is_active", *upd.IsActive)
	}
	switch {
	case upd.ClearSessionToken:
		sets = append(sets, "session_token_hash = NULL")
	case upd.SessionTokenHash != nil:
		set("session_token_hash", *upd.SessionTokenHash)
	}
	switch {
	case upd.ClearPasswordReset:
		sets = append(sets, "reset_token_hash = NULL", "reset_expires_at = NULL")
	case upd.PasswordReset != nil:
		set("reset_token_hash", upd.PasswordReset.TokenHash)
		set("reset_expires_at", upd.PasswordReset.ExpiresAt)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, uid.String())

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)
	u, err := scanUser(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u              models.User
		role           string
		resetTokenHash *string
		resetExpiresAt *time.Time
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &role, &u.IsActive,
		&u.SessionTokenHash, &resetTokenHash, &resetExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	u.Role = models.Role(role)
	if resetTokenHash != nil && resetExpiresAt != nil {
		u.PasswordReset = &models.PasswordResetChallenge{
			TokenHash: *resetTokenHash,
			ExpiresAt: *resetExpiresAt,
		}
	}
	return &u, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}
