package driven

import (
	"context"

	"github.com/custodia-labs/tidemark/internal/core/domain"
)

// Ledger records batch bookkeeping in shared infrastructure so other
// systems can see what was submitted. Ledger writes are best-effort
// from the pipeline's point of view: callers log failures and carry
// on rather than aborting a run.
type Ledger interface {
	// Record writes the initial bookkeeping entry for a submitted job.
	Record(ctx context.Context, job domain.Job) error

	// Finalise marks the entry with the job's terminal state. When the
	// existing entry cannot be updated in place, implementations
	// insert a merged entry instead so the outcome is never lost.
	Finalise(ctx context.Context, job domain.Job) error
}
