// Package history persists completed agent runs. A SQLite index holds one
// row per run (prompt, answer, usage, timings) and the full conversation is
// mirrored as a JSONL transcript, one message per line, so a later run can
// resume the exchange.
//
// Invariants:
//   - Record and SaveTranscript are only called for runs that produced a
//     final answer; a failed run leaves no trace.
//   - Transcripts are keyed by run ID; saving again for the same ID
//     replaces the whole file.
//
// Usage:
//
//	store, err := history.Open(history.Config{Dir: dataDir, Logger: logger})
//	if err != nil { ... }
//	defer store.Close()
//	store.Record(ctx, entry)
//	store.SaveTranscript(entry.RunID, result.Messages)
package history
