package driven

import "context"

// Archiver copies pipeline artefacts to long-term storage. Like the
// ledger, archiving is best-effort: a failed upload is logged, not
// fatal.
type Archiver interface {
	// Store uploads the file at path under the given artefact kind
	// (for example "input" or "output").
	Store(ctx context.Context, kind, path string) error
}
