package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/auth-service/internal/migrations"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

// NewMigrateCmd создает команду migrate с подкомандами up, down и version.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(db *sql.DB, path string) error {
				if err := migrations.Down(db, path, steps); err != nil {
					return err
				}
				cmd.Printf("Rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd.Context(), func(db *sql.DB, path string) error {
					if err := migrations.Run(db, path); err != nil {
						return err
					}
					cmd.Println("Migrations completed successfully")
					return nil
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd.Context(), func(db *sql.DB, path string) error {
					version, dirty, err := migrations.Version(db, path)
					if err != nil {
						return err
					}
					cmd.Printf("version: %d, dirty: %t\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withDB(ctx context.Context, fn func(db *sql.DB, path string) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "postgres" {
		return errors.New("migrations require the postgres storage driver")
	}

	db, err := storage.New(ctx, cfg.Storage.ConnectionString)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	stdDB, err := db.StdDB()
	if err != nil {
		return err
	}
	return fn(stdDB, cfg.Storage.MigrationsPath)
}
