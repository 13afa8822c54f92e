package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/siamlabs/siam/internal/config"
	"github.com/siamlabs/siam/internal/knowledge"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Remove duplicate crawled records",
	Long: `Scans the crawl-type records of the given tenancy and deletes those
whose canonical URL collides with a newer record. Safe to re-run: a
second pass deletes nothing.

Only the database is touched; no AI provider key is needed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDedup(cmd)
	},
}

func init() {
	addTenancyFlags(dedupCmd)
	rootCmd.AddCommand(dedupCmd)
}

func runDedup(cmd *cobra.Command) error {
	tn, err := tenancyFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store, err := knowledge.New(pool, slog.Default())
	if err != nil {
		return fmt.Errorf("creating knowledge store: %w", err)
	}
	summary, err := store.DeduplicateCrawl(ctx, tn)
	if err != nil {
		return fmt.Errorf("deduplicating: %w", err)
	}

	cmd.Printf("Scanned %d crawl records: %d duplicates, %d deleted\n",
		summary.Scanned, summary.Duplicate, summary.Deleted)
	return nil
}
