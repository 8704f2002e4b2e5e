package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var parseOutput string

var parseCmd = &cobra.Command{
	Use:   "parse [input]...",
	Short: "Aggregate batch output files into one JSON report",
	Long: `Parses downloaded batch output artefacts and flattens every usable
answer into a single JSON array. Inputs may be files or directories;
directories are walked recursively for JSONL files.

With no arguments, parses everything under the output directory of the
data dir.`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseOutput, "output", "o", "aggregate.json", "path of the aggregated JSON report")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	if parserService == nil {
		return errors.New("parser not configured")
	}

	inputs := args
	if len(inputs) == 0 {
		dataDir, err := resolveDataDir()
		if err != nil {
			return fmt.Errorf("resolve data directory: %w", err)
		}
		inputs = []string{filepath.Join(dataDir, "output")}
	}

	count, err := parserService.Parse(context.Background(), inputs, parseOutput)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}

	cmd.Printf("Parsed %d record(s) into %s\n", count, parseOutput)
	return nil
}
