package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Collect finished batch outputs",
	Long: `Performs one non-blocking status check over every batch that has not
reached a final state, downloading results for the ones that completed.
Suitable for an hourly cron entry alongside async runs.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if err := ensurePipeline(); err != nil {
		return err
	}

	if err := pipelineService.CheckPending(context.Background()); err != nil {
		return fmt.Errorf("pending sweep failed: %w", err)
	}

	cmd.Println("Pending sweep complete.")
	return nil
}
