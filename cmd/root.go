// Package cmd implements the siam command line interface.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/siamlabs/siam/internal/log"
	"github.com/siamlabs/siam/internal/tenant"
)

var (
	flagVerbose bool
	flagJSONLog bool
)

var rootCmd = &cobra.Command{
	Use:   "siam",
	Short: "SIAM - retrieval-augmented support assistant",
	Long: `SIAM answers support questions grounded in an organization's own
knowledge base. It ingests documents, tickets, code and crawled
documentation into a vector store, retrieves the relevant passages per
query and synthesizes cited answers.

Run "siam serve" to start the HTTP API.`,
	PersistentPreRun: func(*cobra.Command, []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(log.New(log.Config{Level: level, JSON: flagJSONLog}))
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "json-log", false, "log in JSON format")
}

// addTenancyFlags registers the tenancy triple every knowledge command
// requires.
func addTenancyFlags(cmd *cobra.Command) {
	cmd.Flags().String("org", "", "organization (required)")
	cmd.Flags().String("division", "", "division (required)")
	cmd.Flags().String("app", "", "application (required)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("division")
	_ = cmd.MarkFlagRequired("app")
}

// tenancyFromFlags builds and validates the tenancy triple.
func tenancyFromFlags(cmd *cobra.Command) (tenant.Tenancy, error) {
	org, _ := cmd.Flags().GetString("org")
	division, _ := cmd.Flags().GetString("division")
	application, _ := cmd.Flags().GetString("app")

	tn := tenant.Tenancy{Organization: org, Division: division, Application: application}
	if err := tn.Validate(); err != nil {
		return tenant.Tenancy{}, fmt.Errorf("invalid tenancy: %w", err)
	}
	return tn, nil
}
