// Package storage реализует хранилище учётных записей на PostgreSQL.
// Одна строка таблицы users на пользователя: учётные данные, роль,
// флаг активности, хэш refresh-токена и активный запрос на сброс пароля.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists пользователь с таким email уже существует.
	ErrUserExists = errors.New("user already exists")
)

// DB минимальный набор методов пула, который использует Storage.
// Ему удовлетворяют *pgxpool.Pool и pgxmock.PgxPoolIface.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Storage инкапсулирует пул соединений с PostgreSQL.
type Storage struct {
	db   DB
	pool *pgxpool.Pool
}

// New создаёт пул соединений и проверяет доступность базы.
func New(ctx context.Context, connectionString string) (*Storage, error) {
	const op = "storage.New"

	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{db: pool, pool: pool}, nil
}

// NewWithDB оборачивает уже открытое соединение.
func NewWithDB(db DB) *Storage {
	return &Storage{db: db}
}

// Ping проверяет соединение с базой.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// StdDB возвращает *sql.DB поверх пула; нужен для миграций.
func (s *Storage) StdDB() (*sql.DB, error) {
	if s.pool == nil {
		return nil, errors.New("storage.StdDB: storage is not backed by a pool")
	}
	return stdlib.OpenDBFromPool(s.pool), nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
