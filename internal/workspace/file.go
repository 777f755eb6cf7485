package workspace

import (
	"sync"

	"kside/internal/diag"
)

// noOverride marks a file whose badge shows its own bucket size.
const noOverride = -1

// File is a single in-memory source file with its diagnostic bucket.
type File struct {
	mu          sync.RWMutex
	name        string
	content     string
	diagnostics []diag.Diagnostic
	override    int
}

func newFile(name, content string) *File {
	return &File{name: name, content: content, override: noOverride}
}

// Name returns the file name inside its package.
func (f *File) Name() string {
	return f.name
}

// Content returns the current text of the file.
func (f *File) Content() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.content
}

// SetContent replaces the text of the file.
func (f *File) SetContent(content string) {
	f.mu.Lock()
	f.content = content
	f.mu.Unlock()
}

// Diagnostics returns a copy of the file's diagnostic bucket in emission order.
func (f *File) Diagnostics() []diag.Diagnostic {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.diagnostics) == 0 {
		return nil
	}
	out := make([]diag.Diagnostic, len(f.diagnostics))
	copy(out, f.diagnostics)
	return out
}

// AppendDiagnostic adds d at the end of the bucket.
func (f *File) AppendDiagnostic(d diag.Diagnostic) {
	f.mu.Lock()
	f.diagnostics = append(f.diagnostics, d)
	f.mu.Unlock()
}

// ClearDiagnostics empties the bucket.
func (f *File) ClearDiagnostics() {
	f.mu.Lock()
	f.diagnostics = nil
	f.mu.Unlock()
}

// SetDiagnosticCountOverride pins the count shown for this file, regardless
// of its bucket. A negative n removes the override.
func (f *File) SetDiagnosticCountOverride(n int) {
	if n < 0 {
		n = noOverride
	}
	f.mu.Lock()
	f.override = n
	f.mu.Unlock()
}

// DiagnosticCountOverride returns the pinned count and whether one is set.
func (f *File) DiagnosticCountOverride() (int, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.override, f.override != noOverride
}

// DiagnosticCount is the number shown on the file's badge.
func (f *File) DiagnosticCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.override != noOverride {
		return f.override
	}
	return len(f.diagnostics)
}
