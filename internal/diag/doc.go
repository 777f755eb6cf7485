// Package diag defines the diagnostic record exchanged with the compiler worker.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - File – worker-side file name (may be empty for project-level findings).
//   - Start – byte offset of the finding within File.
//   - Pos – optional 0-based line/character computed by the worker.
//   - Category – Warning, Error, Message or Suggestion, numbered the way the worker emits them.
//   - Code – numeric identifier rendered as "TS<n>".
//   - Message – human oriented text.
//
// The same struct is used on the wire (JSON and msgpack tags) and in the
// editor model, so a diagnostic attached to a file bucket is exactly what the
// worker produced.
//
// Package diag does not perform formatting or bucket reconciliation; that
// lives in internal/diagfmt.
package diag
