// Package app wires SIAM's components into a running application:
// configuration, database pool, Genkit provider, knowledge store,
// answering pipeline, ingestion and the healing demo.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siamlabs/siam/internal/config"
	"github.com/siamlabs/siam/internal/healing"
	"github.com/siamlabs/siam/internal/ingest"
	"github.com/siamlabs/siam/internal/knowledge"
	"github.com/siamlabs/siam/internal/rag"
)

// App holds the wired application. Call Close to release resources.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	DBPool   *pgxpool.Pool
	Embedder ai.Embedder

	Store    *knowledge.Store
	Adapter  *rag.EmbeddingAdapter
	Pipeline *rag.Pipeline
	Ingester *ingest.Ingester
	Crawler  *ingest.Crawler
	Runner   *healing.Runner

	dbCleanup func()
}

// Close releases everything Setup acquired. Safe to call on a
// partially initialized App.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	return nil
}
