package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/auth-service/internal/config"
)

var configFile string

// NewRootCmd создает корневую команду authctl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "authctl",
		Short:        "Administrative tool for auth-service",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (defaults to CONFIG_PATH)")

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())

	return cmd
}

func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		return nil, errors.New("config path is not set: use --config or CONFIG_PATH")
	}
	return config.Load(path)
}
