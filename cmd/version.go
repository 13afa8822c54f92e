package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/siamlabs/siam/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runVersion(cmd)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command) error {
	cmd.Printf("SIAM %s\n", AppVersion)
	cmd.Printf("Build Time: %s\n", BuildTime)
	cmd.Printf("Git Commit: %s\n", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		// Version must work without a valid config; report and move on.
		cmd.Printf("\nConfiguration: unavailable (%v)\n", err)
		return nil
	}

	cmd.Println("\nConfiguration:")
	cmd.Printf("  Provider: %s\n", cfg.Provider)
	cmd.Printf("  Model: %s\n", cfg.FullModelName())
	cmd.Printf("  Embedder: %s (%d dimensions)\n", cfg.EmbedderModel, cfg.EmbedderDimension)
	cmd.Printf("  Database: %s:%d/%s\n", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)

	if key := apiKeyForProvider(cfg.Provider); key == "" {
		cmd.Printf("  API key: not set (export %s)\n", apiKeyEnvVar(cfg.Provider))
	} else {
		cmd.Println("  API key: configured")
	}
	return nil
}

func apiKeyEnvVar(provider string) string {
	if provider == config.ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GEMINI_API_KEY"
}

func apiKeyForProvider(provider string) string {
	return os.Getenv(apiKeyEnvVar(provider))
}
