// Package batchout turns provider batch output JSONL lines into
// structured rows. Each line wraps a chat completion whose content is
// itself a JSON document, frequently imperfect: wrapped in markdown
// fences, annotated with comments, or using thousands separators.
// Parsing strips the wrappers, repairs the common defects, and
// flattens array answers while stamping provenance onto every row.
package batchout
