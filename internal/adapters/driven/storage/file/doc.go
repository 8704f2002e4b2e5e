// Package file provides JSON-file-backed implementations of the local
// state ports.
//
// Two stores live here:
//
//   - WatermarkStore: per-source high-water marks (batch_watermark.json)
//   - JobStore: submitted batch bookkeeping (batch_status.json)
//
// Both files sit in the tidemark data directory next to the generated
// JSONL artefacts. Writes go through a temp file followed by an atomic
// rename so a crash mid-write never leaves a truncated state file.
// Reads are deliberately forgiving: a missing or corrupt file yields an
// empty state rather than an error, because both files are advisory and
// can be rebuilt by re-processing the look-back window.
//
// # Data Location
//
// By default, state is stored under ~/.local/share/tidemark
//
// # Thread Safety
//
// All operations are thread-safe via a per-store mutex.
package file
