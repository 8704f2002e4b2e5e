// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ItemStore: Reads raw items from source tables
//   - BatchService: Provider file and batch APIs
//   - WatermarkStore: Per-table high-water mark persistence
//   - JobStore: Local batch job bookkeeping
//   - ConfigStore: Application configuration
//   - PromptStore: System prompt storage
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Ledger: Shared bookkeeping of submitted batches. Without it,
//     only the local job store records runs.
//   - Archiver: Long-term copies of input and output files.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
