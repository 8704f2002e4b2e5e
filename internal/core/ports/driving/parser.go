package driving

import "context"

// Parser aggregates batch output files into a single structured
// document.
type Parser interface {
	// Parse reads the given files or directories (directories are
	// walked recursively for *.jsonl files), flattens every usable
	// answer, and writes the aggregate JSON array to outputPath. It
	// returns the number of rows written.
	Parse(ctx context.Context, inputs []string, outputPath string) (int, error)
}
