// Package dynamo implements the item store port against Amazon DynamoDB.
//
// Source tables are read with paged full-table scans. Each page maps to
// one ScanPage call; the position between pages travels as an opaque
// cursor encoding the table's LastEvaluatedKey, so callers can walk a
// table without knowing its key schema.
//
// # Value Conversion
//
// Attribute values are converted to plain Go values. Numbers become
// json.Number rather than float64 so that epoch timestamps and large
// numeric identifiers survive the round trip with their exact digits.
//
// # Throttling
//
// An optional token-bucket limiter spaces out scan requests to keep a
// long backfill from consuming a table's provisioned read capacity.
package dynamo
