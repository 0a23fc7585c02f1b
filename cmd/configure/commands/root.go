// Package commands implements the restaurant-finder-configure operator CLI.
package commands

import (
	"fmt"

	"github.com/benvon/restaurant-finder/internal/config"
	"github.com/benvon/restaurant-finder/internal/database"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "restaurant-finder-configure",
		Short:         "Operator tool for the restaurant finder API",
		Long:          "Run migrations, edit the CORS and rate limit settings the API hot-reloads, manage the photo cache and check upstream connectivity.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(NewMigrateCmd())
	root.AddCommand(NewCorsCmd())
	root.AddCommand(NewRatelimitCmd())
	root.AddCommand(NewPhotoCacheCmd())
	root.AddCommand(NewTestCmd())
	return root
}

// openDatabase loads configuration and connects. The returned func closes the pool.
func openDatabase() (*config.Config, *database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, db, func() { _ = db.Close() }, nil
}
