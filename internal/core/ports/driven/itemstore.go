package driven

import "context"

// ItemStore reads raw items from source tables.
//
// Implementations may include:
//   - DynamoDB (production)
//   - In-memory fixtures (tests)
type ItemStore interface {
	// ScanPage returns one page of items from the named table. An
	// empty cursor starts from the beginning; the returned cursor is
	// empty on the last page. Cursors are opaque to callers.
	ScanPage(ctx context.Context, table string, cursor string) (items []map[string]any, next string, err error)

	// ListTables returns the table names visible to the store.
	ListTables(ctx context.Context) ([]string, error)
}
