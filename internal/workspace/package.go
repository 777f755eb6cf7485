package workspace

import (
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Package is a named set of files.
type Package struct {
	mu    sync.RWMutex
	name  string
	files map[string]*File
}

// NewPackage creates an empty package.
func NewPackage(name string) *Package {
	return &Package{
		name:  NormalizeName(name),
		files: make(map[string]*File),
	}
}

// Name returns the package name.
func (p *Package) Name() string {
	return p.name
}

// File returns the file with the given name, or nil.
func (p *Package) File(name string) *File {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.files[NormalizeName(name)]
}

// SetFile creates or updates a file and returns its handle. Existing handles
// keep their diagnostics and override.
func (p *Package) SetFile(name, content string) *File {
	key := NormalizeName(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.files[key]; ok {
		f.SetContent(content)
		return f
	}
	f := newFile(key, content)
	p.files[key] = f
	return f
}

// SetFiles replaces the whole file set with files.
func (p *Package) SetFiles(files map[string]string) {
	next := make(map[string]*File, len(files))
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, content := range files {
		key := NormalizeName(name)
		if f, ok := p.files[key]; ok {
			f.SetContent(content)
			next[key] = f
			continue
		}
		next[key] = newFile(key, content)
	}
	p.files = next
}

// RemoveFile deletes a file; it reports whether the file existed.
func (p *Package) RemoveFile(name string) bool {
	key := NormalizeName(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[key]; !ok {
		return false
	}
	delete(p.files, key)
	return true
}

// Names returns file names in sorted order.
func (p *Package) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.files))
	for name := range p.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForEachFile visits files in name order.
func (p *Package) ForEachFile(fn func(*File)) {
	for _, name := range p.Names() {
		if f := p.File(name); f != nil {
			fn(f)
		}
	}
}

// Snapshot returns name → content for every file.
func (p *Package) Snapshot() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.files))
	for name, f := range p.files {
		out[name] = f.Content()
	}
	return out
}

// NormalizeName converts a file or package name to its lookup key:
// forward slashes, cleaned, NFC-normalized.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Clean(name)
	name = strings.TrimPrefix(name, "./")
	return norm.NFC.String(name)
}
