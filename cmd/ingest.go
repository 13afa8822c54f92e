package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siamlabs/siam/internal/app"
	"github.com/siamlabs/siam/internal/config"
	"github.com/siamlabs/siam/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <documents.json>",
	Short: "Ingest a batch of documents into the knowledge base",
	Long: `Reads a JSON array of documents and ingests them for the given
tenancy. Each document needs source_type, source_id and content;
metadata is optional:

  [{"source_type": "knowledge", "source_id": "vpn-guide",
    "content": "...", "metadata": {"title": "VPN setup"}}]

Failed documents are skipped and reported; re-running the same file is
safe because ingestion upserts by source.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args[0])
	},
}

func init() {
	addTenancyFlags(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, path string) error {
	tn, err := tenancyFromFlags(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("reading documents file: %w", err)
	}
	var docs []ingest.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parsing documents file: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents in %s", path)
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

	summary, err := a.Ingester.IngestBatch(ctx, tn, docs)
	if err != nil {
		return fmt.Errorf("ingesting batch: %w", err)
	}

	printSummary(cmd, summary)
	return nil
}

func printSummary(cmd *cobra.Command, summary ingest.Summary) {
	cmd.Printf("Ingested %d/%d documents (%d failed)\n",
		summary.Succeeded, summary.Total, summary.Failed)
	for _, f := range summary.Failures {
		cmd.Printf("  %s: %s\n", f.SourceID, f.Reason)
	}
}
