// Package workspace holds the editor's in-memory file model.
//
// An Editor owns the main package ("this"), any loaded dependency packages
// and an output package for compiler artifacts. Files are addressed by
// logical path "<package>/<file>". Each File carries a diagnostic bucket and
// an optional diagnostic-count override; both are written by the diagnostic
// reducer while holding the bridge's lane, and read by anything that renders
// the model.
package workspace
