package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siamlabs/siam/internal/app"
	"github.com/siamlabs/siam/internal/config"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <start-url>",
	Short: "Crawl a documentation site into the knowledge base",
	Long: `Crawls the site at start-url, extracts readable text per page and
ingests the pages as crawl-type documents for the given tenancy. The
crawl stays on the start URL's host and honors the configured page cap,
depth and per-request delay.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl(cmd, args[0])
	},
}

func init() {
	addTenancyFlags(crawlCmd)
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, startURL string) error {
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

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	docs, err := a.Crawler.Crawl(ctx, startURL)
	if err != nil {
		return fmt.Errorf("crawling %s: %w", startURL, err)
	}
	if len(docs) == 0 {
		cmd.Println("No readable pages found")
		return nil
	}
	cmd.Printf("Crawled %d pages, ingesting\n", len(docs))

	summary, err := a.Ingester.IngestBatch(ctx, tn, docs)
	if err != nil {
		return fmt.Errorf("ingesting crawled pages: %w", err)
	}

	printSummary(cmd, summary)
	return nil
}
