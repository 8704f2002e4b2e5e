package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tidemark/internal/core/domain"
)

var sourcesRemote bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	Long: `Shows the sources enabled for batch processing and their settings.

With --remote, lists every DynamoDB table visible in the current AWS
account and region instead.`,
	RunE: runSourcesCmd,
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesRemote, "remote", false, "list DynamoDB tables from AWS instead of configuration")
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesCmd(cmd *cobra.Command, _ []string) error {
	if sourcesRemote {
		return runSourcesRemote(cmd)
	}
	if configStore == nil {
		return errors.New("config store not configured")
	}

	names := configStore.GetStringSlice("sources.enabled")
	usingDefault := len(names) == 0
	if usingDefault {
		names = []string{domain.DefaultSourceName}
	}

	cmd.Println(headingStyle.Render("Configured sources"))
	cmd.Println()
	for _, name := range names {
		src := resolveSource(name)
		cmd.Printf("  %s\n", src.Name)
		if src.SkipCutoff {
			cmd.Println("    Cutoff: disabled (full snapshot each run)")
		} else {
			cmd.Println("    Cutoff: look-back window with watermark")
		}
		if src.Prompt != "" {
			cmd.Printf("    Prompt: %s\n", src.Prompt)
		}
	}

	if usingDefault {
		cmd.Println()
		cmd.Println(hintStyle.Render("No sources enabled in configuration; showing the default."))
		cmd.Println(hintStyle.Render("Enable sources with: tidemark config set sources.enabled <table>,<table>"))
	}
	return nil
}

func runSourcesRemote(cmd *cobra.Command) error {
	if itemStore == nil {
		return errors.New("item store not configured")
	}

	tables, err := itemStore.ListTables(context.Background())
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	for _, name := range tables {
		cmd.Println(name)
	}
	return nil
}
