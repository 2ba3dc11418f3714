package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping migration tests in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func getMigrationsPath(t *testing.T) string {
	projectRoot, err := filepath.Abs("../..")
	require.NoError(t, err)
	return filepath.Join(projectRoot, "migrations")
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (
		SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1
	)`, table).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestRunMigrations(t *testing.T) {
	db := getTestDB(t)
	path := getMigrationsPath(t)

	require.NoError(t, Run(db, path))
	require.True(t, tableExists(t, db, "users"))

	rows, err := db.Query(`SELECT column_name FROM information_schema.columns WHERE table_name = 'users'`)
	require.NoError(t, err)
	defer rows.Close()
	var columns []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		columns = append(columns, name)
	}
	require.NoError(t, rows.Err())
	assert.ElementsMatch(t, []string{
		"id", "email", "password_hash", "name", "role", "is_active",
		"session_token_hash", "reset_token_hash", "reset_expires_at", "created_at", "updated_at",
	}, columns)
}

func TestMigrations_Constraints(t *testing.T) {
	db := getTestDB(t)
	require.NoError(t, Run(db, getMigrationsPath(t)))

	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{
			name:  "valid user",
			query: `INSERT INTO users (email, password_hash) VALUES ('alice@x', 'h')`,
		},
		{
			name:    "duplicate email",
			query:   `INSERT INTO users (email, password_hash) VALUES ('alice@x', 'h')`,
			wantErr: "users_email_key",
		},
		{
			name:    "unknown role",
			query:   `INSERT INTO users (email, password_hash, role) VALUES ('bob@x', 'h', 'ROOT')`,
			wantErr: "users_role_check",
		},
		{
			name:    "reset token without expiry",
			query:   `INSERT INTO users (email, password_hash, reset_token_hash) VALUES ('carol@x', 'h', 'abc')`,
			wantErr: "reset_challenge_complete",
		},
		{
			name:  "complete reset challenge",
			query: `INSERT INTO users (email, password_hash, reset_token_hash, reset_expires_at) VALUES ('dave@x', 'h', 'abc', NOW())`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Exec(tt.query)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMigrations_DownAndVersion(t *testing.T) {
	db := getTestDB(t)
	path := getMigrationsPath(t)

	version, dirty, err := Version(db, path)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, Run(db, path))
	version, dirty, err = Version(db, path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, Down(db, path, 1))
	assert.False(t, tableExists(t, db, "users"))
	version, _, err = Version(db, path)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}

func TestMigrationIdempotency(t *testing.T) {
	db := getTestDB(t)
	path := getMigrationsPath(t)

	require.NoError(t, Run(db, path))
	require.NoError(t, Run(db, path))

	_, err := db.Exec(`INSERT INTO users (email, password_hash) VALUES ('alice@x', 'h')`)
	require.NoError(t, err)
	require.NoError(t, Run(db, path))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 1, count)
}
