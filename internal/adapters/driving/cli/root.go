// Package cli implements the tidemark command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/tidemark/internal/adapters/driven/config/file"
	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
	"github.com/custodia-labs/tidemark/internal/core/ports/driving"
	"github.com/custodia-labs/tidemark/internal/logger"
)

// version is the build version, overridden at release time via
// -ldflags "-X .../internal/adapters/driving/cli.version=v1.2.3".
var version = "dev"

// Service instances shared by every command. Execute wires the real
// implementations; tests swap in mocks.
var (
	configStore     driven.ConfigStore
	promptStore     driven.PromptStore
	itemStore       driven.ItemStore
	pipelineService driving.Pipeline
	parserService   driving.Parser

	// configWatcher is the concrete store behind configStore; the
	// daemon uses its fsnotify watch for hot-reload.
	configWatcher *configfile.ConfigStore

	// pipelineInitErr records why the pipeline could not be built, so
	// the commands that need it report the actual reason.
	pipelineInitErr error
)

var (
	apiKeyFlag  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "tidemark",
	Short: "Batch inference pipeline for DynamoDB sources",
	Long: `Tidemark turns DynamoDB table rows into OpenAI Batch API jobs.

Each cycle scans the enabled sources for fresh records, drops rows that
were already submitted, writes a JSONL request file and submits it at
batch pricing. Per-source watermarks keep cycles incremental, so
overlapping schedules never resend the same rows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "OpenAI API key override for this invocation")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
}

// Execute wires the service graph and runs the root command.
func Execute() error {
	// Flags are not parsed until the command runs, but wiring logs
	// should already respect verbosity, so the flag is pre-scanned.
	for _, arg := range os.Args[1:] {
		if arg == "--verbose" || arg == "-v" {
			logger.SetVerbose(true)
		}
	}

	if err := initServices(); err != nil {
		return err
	}
	return rootCmd.Execute()
}

// ensurePipeline applies any --api-key override and verifies that the
// pipeline came up.
func ensurePipeline() error {
	if key := strings.TrimSpace(apiKeyFlag); key != "" {
		logger.Info("Using API key supplied via --api-key (%d characters)", len(key))
		if err := initPipeline(key); err != nil {
			return fmt.Errorf("configure pipeline: %w", err)
		}
	}

	if pipelineService == nil {
		if errors.Is(pipelineInitErr, domain.ErrMissingAPIKey) {
			return errors.New("no API key configured: set OPENAI_API_KEY, pass --api-key, or run 'tidemark auth set-key'")
		}
		if pipelineInitErr != nil {
			return fmt.Errorf("pipeline not configured: %w", pipelineInitErr)
		}
		return errors.New("pipeline not configured")
	}
	return nil
}
