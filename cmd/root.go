package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/makeuplens/makeuplens/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	flagEndpoint   string
	flagAPIKey     string
	flagRequireKey bool
	flagOutput     string
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "makeuplens",
		Short: "Makeup photo analysis and ingredient portfolio tool",
		Long: `Makeuplens turns a photo of makeup products into a structured list of
identified products with ingredient data, and keeps selected results in a
personal portfolio held on the analysis service.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "Analysis service base URL (default $MAKEUP_API_URL or "+config.DefaultEndpoint+")")
	cmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key for deployments that require one (default $MAKEUP_API_KEY)")
	cmd.PersistentFlags().BoolVar(&flagRequireKey, "require-key", false, "Fail fast when no API key is configured")
	cmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "yaml", "Output format: yaml or json")

	// Add subcommands
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newPortfolioCmd())

	return cmd
}

// loadConfig resolves configuration from environment with flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	if flagEndpoint != "" {
		cfg.EndpointBase = strings.TrimRight(flagEndpoint, "/")
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagRequireKey {
		cfg.CredentialRequired = true
	}
	return cfg, nil
}

// printOutput renders v to stdout in the selected output format.
func printOutput(cmd *cobra.Command, v any) error {
	switch flagOutput {
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		cmd.Print(string(data))
		return nil
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		cmd.Println(string(data))
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: yaml, json)", flagOutput)
	}
}
