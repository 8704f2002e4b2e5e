package driving

import "context"

// Pipeline drives the batch lifecycle end to end: fetch, filter,
// format, submit, monitor, download.
type Pipeline interface {
	// Run executes one cycle for every requested source in turn.
	Run(ctx context.Context, opts RunOptions) error

	// Resume re-attaches to a previously submitted batch, waits for it
	// to finish, and downloads the results when it completed.
	Resume(ctx context.Context, batchID string) error

	// CheckPending probes every unfinished tracked job exactly once,
	// downloading and finalising those that completed. It never blocks
	// on still-running jobs.
	CheckPending(ctx context.Context) error
}

// RunOptions configures one pipeline run.
type RunOptions struct {
	// Hours is the look-back window. Zero or negative skips the fetch
	// entirely.
	Hours int

	// ModelKey selects the model: an alias (nano/mini/full) or a
	// concrete model name.
	ModelKey string

	// Sources names the tables to process. Empty means the configured
	// default set.
	Sources []string

	// TestOnly stops after writing the request file; nothing is
	// submitted and no state advances.
	TestOnly bool

	// Wait blocks until each submitted batch finishes and downloads
	// the results inline. When false the run returns right after
	// submission.
	Wait bool
}
