// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (runtime override)
//  2. Config file (~/.siam/config.yaml or ./config.yaml)
//  3. Defaults
//
// Categories: AI provider and models, PostgreSQL storage (storage.go),
// retrieval bounds, crawler, HTTP server. Validation lives in
// validation.go and uses sentinel errors checkable with errors.Is.
//
// Sensitive fields (passwords) are masked in MarshalJSON and String.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the selected provider's API key is absent.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates an unsupported AI provider.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates an empty or malformed model name.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates a temperature outside [0, 2].
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates a max-tokens value out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedder indicates an embedder model/dimension problem.
	ErrInvalidEmbedder = errors.New("invalid embedder configuration")

	// ErrInvalidSearchBounds indicates retrieval threshold/limit out of range.
	ErrInvalidSearchBounds = errors.New("invalid search bounds")

	// ErrInvalidPostgres indicates a PostgreSQL connection setting problem.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidCrawler indicates a crawler setting out of range.
	ErrInvalidCrawler = errors.New("invalid crawler configuration")

	// ErrInvalidServerAddr indicates a malformed server listen address.
	ErrInvalidServerAddr = errors.New("invalid server address")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Embedder defaults per provider. gemini-embedding-001 outputs 3072
// dimensions natively and is truncated to 768 via OutputDimensionality;
// text-embedding-3-small outputs 1536 and supports the same truncation
// through the dimensions parameter. The pgvector schema dimension must
// match EmbedderDimension.
const (
	DefaultGeminiEmbedderModel = "gemini-embedding-001"
	DefaultOpenAIEmbedderModel = "text-embedding-3-small"
	DefaultEmbedderDimension   = 768
)

// CrawlerConfig bounds the web crawler used for crawl-type ingestion.
type CrawlerConfig struct {
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
	DelayMS     int `mapstructure:"delay_ms" json:"delay_ms"`
	TimeoutMS   int `mapstructure:"timeout_ms" json:"timeout_ms"`
	MaxPages    int `mapstructure:"max_pages" json:"max_pages"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding a
// new secret field, update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"` // "gemini" (default) or "openai"
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedding configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Retrieval bounds
	SearchThreshold float32 `mapstructure:"search_threshold" json:"search_threshold"`
	SearchLimit     int     `mapstructure:"search_limit" json:"search_limit"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Crawler configuration
	Crawler CrawlerConfig `mapstructure:"crawler" json:"crawler"`

	// HTTP server configuration (serve mode)
	ServerAddr     string  `mapstructure:"server_addr" json:"server_addr"`
	GenerateRPS    float64 `mapstructure:"generate_rps" json:"generate_rps"`
	GenerateBurst  int     `mapstructure:"generate_burst" json:"generate_burst"`
	MigrateOnStart bool    `mapstructure:"migrate_on_start" json:"migrate_on_start"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".siam")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, if set, overrides the individual postgres_* values.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.3)
	viper.SetDefault("max_tokens", 2048)

	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	viper.SetDefault("search_threshold", 0.55)
	viper.SetDefault("search_limit", 10)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "siam")
	viper.SetDefault("postgres_password", "siam_dev_password")
	viper.SetDefault("postgres_db_name", "siam")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("crawler.parallelism", 2)
	viper.SetDefault("crawler.delay_ms", 1000)
	viper.SetDefault("crawler.timeout_ms", 30000)
	viper.SetDefault("crawler.max_pages", 200)

	viper.SetDefault("server_addr", ":8080")
	viper.SetDefault("generate_rps", 2)
	viper.SetDefault("generate_burst", 4)
	viper.SetDefault("migrate_on_start", true)
}

// bindEnvVariables binds environment overrides explicitly.
// Provider API keys (GEMINI_API_KEY, OPENAI_API_KEY) are read directly
// by the Genkit plugins, not via viper; Validate checks their presence
// for the selected provider.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "SIAM_PROVIDER")
	mustBind("model_name", "SIAM_MODEL_NAME")
	mustBind("embedder_model", "SIAM_EMBEDDER_MODEL")
	mustBind("embedder_dimension", "SIAM_EMBEDDER_DIMENSION")
	mustBind("server_addr", "SIAM_SERVER_ADDR")
	mustBind("migrate_on_start", "SIAM_MIGRATE_ON_START")
}

// maskedValue uses full-width blocks so a masked value can never be a
// substring of the real secret.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debug
// utility. This defends against accidental logging, nothing more.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "openai/gpt-4o-mini".
// A name already containing "/" is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	if c.Provider == ProviderOpenAI {
		return "openai/" + c.ModelName
	}
	return "googleai/" + c.ModelName
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
