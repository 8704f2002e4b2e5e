// Package timestamp converts heterogeneous event-time attributes into
// Unix epoch seconds. Source tables disagree on both the attribute
// name ("timestamp", "created_at", "publishedAt") and the encoding:
// epoch seconds or milliseconds, numeric strings, ISO 8601 with or
// without an offset, and legacy US-Eastern wall-clock strings.
package timestamp
