package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"slices"
)

var validSSLModes = []string{"disable", "require", "verify-ca", "verify-full"}

// Supported embedder dimensions. Both provider models support
// truncation (Matryoshka-style for Gemini, the dimensions parameter for
// OpenAI), so either dimension works with either provider as long as
// the pgvector column matches.
var validEmbedderDimensions = []int{768, 1536}

// Validate checks all configuration values and fails fast.
// Returns sentinel errors checkable with errors.Is.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	default:
		return fmt.Errorf("%w: %q (supported: %s, %s)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOpenAI)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedder)
	}
	if !slices.Contains(validEmbedderDimensions, c.EmbedderDimension) {
		return fmt.Errorf("%w: embedder_dimension %d not supported (want one of %v); "+
			"the pgvector column dimension must match", ErrInvalidEmbedder, c.EmbedderDimension, validEmbedderDimensions)
	}

	if c.SearchThreshold < 0 || c.SearchThreshold > 1 {
		return fmt.Errorf("%w: search_threshold must be in [0, 1], got %.2f", ErrInvalidSearchBounds, c.SearchThreshold)
	}
	if c.SearchLimit < 1 || c.SearchLimit > 50 {
		return fmt.Errorf("%w: search_limit must be between 1 and 50, got %d", ErrInvalidSearchBounds, c.SearchLimit)
	}

	if err := c.validatePostgres(); err != nil {
		return err
	}
	if err := c.validateCrawler(); err != nil {
		return err
	}

	if c.ServerAddr == "" {
		return fmt.Errorf("%w: server_addr cannot be empty", ErrInvalidServerAddr)
	}
	if _, _, err := net.SplitHostPort(c.ServerAddr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidServerAddr, c.ServerAddr, err)
	}
	if c.GenerateRPS <= 0 || c.GenerateBurst < 1 {
		return fmt.Errorf("%w: generate_rps must be > 0 and generate_burst >= 1", ErrInvalidServerAddr)
	}

	return nil
}

func (c *Config) validatePostgres() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgres)
	}
	if c.PostgresPassword == "siam_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"hint", "change postgres_password for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgres, len(c.PostgresPassword))
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: ssl mode %q is not valid, must be one of %v",
			ErrInvalidPostgres, c.PostgresSSLMode, validSSLModes)
	}
	return nil
}

func (c *Config) validateCrawler() error {
	if c.Crawler.Parallelism < 1 || c.Crawler.Parallelism > 16 {
		return fmt.Errorf("%w: parallelism must be between 1 and 16, got %d", ErrInvalidCrawler, c.Crawler.Parallelism)
	}
	if c.Crawler.DelayMS < 0 {
		return fmt.Errorf("%w: delay_ms cannot be negative", ErrInvalidCrawler)
	}
	if c.Crawler.TimeoutMS < 1000 {
		return fmt.Errorf("%w: timeout_ms must be at least 1000, got %d", ErrInvalidCrawler, c.Crawler.TimeoutMS)
	}
	if c.Crawler.MaxPages < 1 {
		return fmt.Errorf("%w: max_pages must be at least 1, got %d", ErrInvalidCrawler, c.Crawler.MaxPages)
	}
	return nil
}
