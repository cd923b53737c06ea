// Package cli implements the sercha-rag command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logging"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

var version = "dev"

// SetVersion sets the version reported by the version command
func SetVersion(v string) {
	version = v
}

// HealthChecker reports the state of every backing dependency
type HealthChecker interface {
	HealthCheck(ctx context.Context) []runtime.CheckResult
}

// Migrator creates the storage schema
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Dependencies are the services driven by the commands.
// A nil member disables the commands that need it.
type Dependencies struct {
	Ingestion     driving.IngestionService
	Query         driving.QueryService
	Sources       driving.SourceService
	Conversations driving.ConversationService
	Health        HealthChecker
	Migrator      Migrator
	Close         func() error
}

// Bootstrap builds the dependencies from a validated configuration
type Bootstrap func(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Dependencies, error)

const (
	// annotationNoSetup marks commands that run without configuration
	annotationNoSetup = "no-setup"

	timeLayout = "2006-01-02 15:04:05"
)

var (
	bootstrap Bootstrap
	deps      *Dependencies
	ownsDeps  bool

	configPath string
	envFile    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Retrieval-augmented answers over your documents",
	Long: `sercha-rag ingests documents into a vector store and answers questions
from them with a generative model, citing the fragments it used.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

// Execute runs the root command, building dependencies with b
func Execute(ctx context.Context, b Bootstrap) error {
	bootstrap = b
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationNoSetup] != "" || cmd.Name() == "help" || deps != nil || bootstrap == nil {
		return nil
	}

	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.Log, cmd.ErrOrStderr())
	built, err := bootstrap(cmd.Context(), cfg, &logger)
	if err != nil {
		return err
	}
	deps, ownsDeps = built, true
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !ownsDeps || deps == nil {
		return nil
	}
	closer := deps.Close
	deps, ownsDeps = nil, false
	if closer != nil {
		return closer()
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
