package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/siamlabs/siam/db"
	"github.com/siamlabs/siam/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Applies the embedded schema migrations to the configured PostgreSQL
database. "siam serve" does this automatically when migrate_on_start is
enabled; this command exists for deployments that run migrations as a
separate step.`,
	RunE: func(*cobra.Command, []string) error {
		return runMigrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := db.Migrate(cfg.PostgresURL(), slog.Default()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
