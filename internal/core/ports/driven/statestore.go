package driven

import "github.com/custodia-labs/tidemark/internal/core/domain"

// WatermarkStore persists the per-table high-water marks: the newest
// event time that has already been submitted for each table.
type WatermarkStore interface {
	// Load returns the stored marks. The file is advisory: when it is
	// missing or unreadable an empty map is returned so the pipeline
	// falls back to the full look-back window instead of failing.
	Load() map[string]int64

	// Save persists the full set of marks atomically.
	Save(marks map[string]int64) error
}

// JobStore persists the locally tracked batch jobs.
type JobStore interface {
	// Load returns all tracked jobs keyed by batch ID. A missing or
	// unreadable file yields an empty map, never an error.
	Load() map[string]domain.Job

	// Save persists all jobs atomically.
	Save(jobs map[string]domain.Job) error
}
