package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driving"
	"github.com/custodia-labs/tidemark/internal/logger"
)

// defaultLookbackHours is the scan window when neither the flag nor
// the config file says otherwise.
const defaultLookbackHours = 12

var (
	runHours   int
	runModel   string
	runSources []string
	runTest    bool
	runAsync   bool
	runResume  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch fresh records and submit a batch",
	Long: `Runs one full batch cycle: scans each source for fresh records,
filters out rows already sent, writes the JSONL request file and
submits it.

A single-source run polls until the batch finishes and downloads the
results inline. Multiple sources switch to async submission; collect
their results later with 'tidemark check' or a daemon.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runHours, "hours", defaultLookbackHours, "look-back window in hours")
	runCmd.Flags().StringVar(&runModel, "model", domain.DefaultModelKey, "model alias (nano/mini/full) or a concrete model name")
	runCmd.Flags().StringArrayVarP(&runSources, "source", "s", nil, "source table to process (repeatable, comma-separated values accepted)")
	runCmd.Flags().BoolVar(&runTest, "test", false, "stop after writing the request file; nothing is submitted")
	runCmd.Flags().BoolVar(&runAsync, "async", false, "submit and exit without polling (recommended for cron)")
	runCmd.Flags().StringVar(&runResume, "resume", "", "resume polling and download for an existing batch ID")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	if err := ensurePipeline(); err != nil {
		return err
	}

	ctx := context.Background()

	if runResume != "" {
		if err := pipelineService.Resume(ctx, runResume); err != nil {
			return fmt.Errorf("resume %s: %w", runResume, err)
		}
		cmd.Printf("Resume complete for batch %s.\n", runResume)
		return nil
	}

	// Async cycles collect anything finished from earlier runs before
	// queueing new work. Test mode never talks to the provider at all.
	if runAsync && !runTest {
		if err := pipelineService.CheckPending(ctx); err != nil {
			logger.Warn("Pending sweep failed: %v", err)
		}
	}

	sources := resolveRunSources()
	wait := !runAsync
	if len(sources) > 1 && wait {
		logger.Info("Multiple sources detected (%d): automatically enabling async mode", len(sources))
		wait = false
	}

	model := resolveRunModel(cmd)
	warnUnknownModel(model)

	opts := driving.RunOptions{
		Hours:    resolveRunHours(cmd),
		ModelKey: model,
		Sources:  sources,
		TestOnly: runTest,
		Wait:     wait,
	}

	if err := pipelineService.Run(ctx, opts); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	switch {
	case runTest:
		cmd.Println("Test run complete; request files written, nothing submitted.")
	case wait:
		cmd.Println("Batch cycle complete.")
	default:
		cmd.Println("Batches submitted; collect results with 'tidemark check'.")
	}
	return nil
}

// resolveRunSources applies source precedence: explicit flags, then
// the configured enabled list, then the default source.
func resolveRunSources() []string {
	if len(runSources) > 0 {
		return splitSources(runSources)
	}
	if sources := configStore.GetStringSlice("sources.enabled"); len(sources) > 0 {
		return sources
	}
	logger.Info("No sources enabled in configuration: defaulting to %s", domain.DefaultSourceName)
	return []string{domain.DefaultSourceName}
}

// splitSources expands comma-separated flag values and drops blanks.
func splitSources(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, chunk := range raw {
		for _, name := range strings.Split(chunk, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// resolveRunHours prefers an explicit flag over the config file over
// the built-in default.
func resolveRunHours(cmd *cobra.Command) int {
	if !cmd.Flags().Changed("hours") {
		if hours := configStore.GetInt("batch.hours"); hours > 0 {
			return hours
		}
	}
	return runHours
}

// resolveRunModel prefers an explicit flag over the config file.
func resolveRunModel(cmd *cobra.Command) string {
	if !cmd.Flags().Changed("model") {
		if model := configStore.GetString("batch.model"); model != "" {
			return model
		}
	}
	return runModel
}

// warnUnknownModel flags keys that will silently fall back to the
// default model at submission time.
func warnUnknownModel(key string) {
	for _, known := range domain.KnownModelKeys() {
		if known == key {
			return
		}
	}
	for _, known := range domain.EmbeddingModels {
		if known == key {
			return
		}
	}
	logger.Warn("Unknown model %q: requests will use %s", key, domain.ResolveModel(key))
}
