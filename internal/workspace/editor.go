package workspace

import (
	"sort"
	"strings"
	"sync"
)

// MainPackage is the logical name of the package being edited.
const MainPackage = "this"

// Header describes the project open in the editor.
type Header struct {
	Name string
}

// Editor is the in-memory model of the open project: the main package, its
// loaded dependencies, and an output package holding compiler artifacts.
type Editor struct {
	mu     sync.RWMutex
	header Header
	pkgs   map[string]*Package
	output *Package
}

// NewEditor creates an editor model with an empty main package.
func NewEditor(name string) *Editor {
	e := &Editor{
		header: Header{Name: name},
		pkgs:   make(map[string]*Package),
		output: NewPackage("built"),
	}
	e.pkgs[MainPackage] = NewPackage(MainPackage)
	return e
}

// Header returns the project header.
func (e *Editor) Header() Header {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.header
}

// SetName renames the project.
func (e *Editor) SetName(name string) {
	e.mu.Lock()
	e.header.Name = name
	e.mu.Unlock()
}

// Name returns the project name.
func (e *Editor) Name() string {
	return e.Header().Name
}

// Main returns the main package.
func (e *Editor) Main() *Package {
	return e.Package(MainPackage)
}

// Output returns the package holding compiler output files.
func (e *Editor) Output() *Package {
	return e.output
}

// Package returns a loaded package by name, or nil.
func (e *Editor) Package(name string) *Package {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pkgs[NormalizeName(name)]
}

// AddPackage registers (or replaces) a dependency package.
func (e *Editor) AddPackage(p *Package) {
	e.mu.Lock()
	e.pkgs[p.Name()] = p
	e.mu.Unlock()
}

// Packages returns loaded packages, main first then dependencies by name.
func (e *Editor) Packages() []*Package {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.pkgs))
	for name := range e.pkgs {
		if name != MainPackage {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]*Package, 0, len(e.pkgs))
	if p, ok := e.pkgs[MainPackage]; ok {
		out = append(out, p)
	}
	for _, name := range names {
		out = append(out, e.pkgs[name])
	}
	return out
}

// ForEachFile visits every source file of every loaded package. Output files
// are not visited.
func (e *Editor) ForEachFile(fn func(*File)) {
	for _, p := range e.Packages() {
		p.ForEachFile(fn)
	}
}

// LookupFile resolves a "<package>/<file>" path, e.g. "this/main.ts".
func (e *Editor) LookupFile(logical string) *File {
	logical = NormalizeName(logical)
	pkgName, fileName, ok := strings.Cut(logical, "/")
	if !ok || fileName == "" {
		return nil
	}
	p := e.Package(pkgName)
	if p == nil {
		return nil
	}
	return p.File(fileName)
}

// SetFiles replaces the output file set.
func (e *Editor) SetFiles(files map[string]string) {
	e.output.SetFiles(files)
}
