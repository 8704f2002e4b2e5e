package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tidemark/internal/core/ports/driving"
	"github.com/custodia-labs/tidemark/internal/core/services"
	"github.com/custodia-labs/tidemark/internal/logger"
)

var daemonSchedule string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled batch cycles until interrupted",
	Long: `Runs the pipeline on a cron schedule, submitting asynchronously and
sweeping pending batches every fifteen minutes.

The config file is watched while the daemon runs: edits to the enabled
sources or the prompt files take effect without a restart.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&daemonSchedule, "schedule", "", "cron expression for batch cycles (default from config, then @hourly)")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if err := ensurePipeline(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchConfig(ctx)

	base := driving.RunOptions{
		Hours:    configHours(),
		ModelKey: resolveModelKey(),
	}
	schedule := resolveSchedule()

	var scheduler driving.Scheduler = services.NewScheduler(pipelineService, schedule, base, enabledSources)

	cmd.Printf("Daemon started (schedule %s). Press Ctrl+C to stop.\n", schedule)
	if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler: %w", err)
	}

	cmd.Println("Daemon stopped.")
	return nil
}

// watchConfig clears the prompt cache whenever the config file is
// reloaded. The enabled-source list is re-read by the scheduler at the
// start of every cycle, so those edits need no extra handling.
func watchConfig(ctx context.Context) {
	if configWatcher == nil {
		return
	}

	reloads, err := configWatcher.Watch(ctx)
	if err != nil {
		logger.Warn("Config hot-reload disabled: %v", err)
		return
	}

	go func() {
		for range reloads {
			if promptStore != nil {
				promptStore.Reload()
			}
		}
	}()
}

// configHours returns the configured look-back window for scheduled
// cycles.
func configHours() int {
	if hours := configStore.GetInt("batch.hours"); hours > 0 {
		return hours
	}
	return defaultLookbackHours
}

// resolveSchedule prefers the flag over the config file, falling back
// to hourly cycles.
func resolveSchedule() string {
	if daemonSchedule != "" {
		return daemonSchedule
	}
	if schedule := configStore.GetString("daemon.schedule"); schedule != "" {
		return schedule
	}
	return "@hourly"
}
