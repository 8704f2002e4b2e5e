// Package driving defines the interfaces external actors (the CLI, a
// cron daemon) use to operate the core services. These are the
// "driving" ports in hexagonal architecture terminology - they drive
// the application.
//
// Implementations of these interfaces live in internal/core/services:
//
//   - Pipeline: one-shot batch cycles, resume and pending sweeps
//   - Parser: output aggregation
//   - Scheduler: timed cycles for daemon mode
package driving
