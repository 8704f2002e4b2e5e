package driving

import "context"

// Scheduler runs batch cycles and pending sweeps on a timetable.
type Scheduler interface {
	// Start begins the schedule. Blocks until the context is cancelled
	// or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the schedule. Any in-flight cycle finishes
	// first.
	Stop() error
}
