package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/siamlabs/siam/db"
	"github.com/siamlabs/siam/internal/config"
	"github.com/siamlabs/siam/internal/healing"
	"github.com/siamlabs/siam/internal/ingest"
	"github.com/siamlabs/siam/internal/knowledge"
	"github.com/siamlabs/siam/internal/rag"
)

// Setup creates and initializes the application. On error everything
// already acquired is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, dbCleanup, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Store, err = knowledge.New(pool, logger.With("component", "knowledge"))
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}

	a.Adapter, err = rag.NewEmbeddingAdapter(embedder, cfg.EmbedderDimension, logger.With("component", "embedder"))
	if err != nil {
		return nil, fmt.Errorf("creating embedding adapter: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.GenerateRPS), cfg.GenerateBurst)
	synthesizer, err := rag.NewSynthesizer(g, cfg.FullModelName(), cfg.Temperature, cfg.MaxTokens, limiter, logger.With("component", "synthesizer"))
	if err != nil {
		return nil, fmt.Errorf("creating synthesizer: %w", err)
	}

	assembler := rag.NewAssembler(rag.NewSkillLoader())
	a.Pipeline, err = rag.NewPipeline(a.Adapter, a.Store, assembler, synthesizer,
		rag.NewConversationCache(), cfg.SearchLimit, cfg.SearchThreshold,
		logger.With("component", "pipeline"))
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	a.Ingester, err = ingest.NewIngester(a.Adapter, a.Store, logger.With("component", "ingester"))
	if err != nil {
		return nil, fmt.Errorf("creating ingester: %w", err)
	}

	a.Crawler = ingest.NewCrawler(ingest.CrawlerConfig{
		Parallelism: cfg.Crawler.Parallelism,
		Delay:       time.Duration(cfg.Crawler.DelayMS) * time.Millisecond,
		Timeout:     time.Duration(cfg.Crawler.TimeoutMS) * time.Millisecond,
		MaxPages:    cfg.Crawler.MaxPages,
	}, logger.With("component", "crawler"))

	a.Runner = healing.NewRunner(
		healing.NewMatcher(logger.With("component", "healing")),
		logger.With("component", "healing"))

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider
// plugin. Gemini embedders are created by name; OpenAI auto-registers
// its embedders in Init.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	if cfg.Provider == config.ProviderOpenAI {
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	}
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}

// provideDBPool creates the PostgreSQL connection pool, running
// migrations first when configured to.
func provideDBPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, func(), error) {
	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}
