// Package project turns a package manifest and its files into the compile
// options sent to the worker.
package project

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"

	"kside/internal/workspace"
)

const (
	// ManifestFile is the package manifest name.
	ManifestFile = "kind.toml"
	// DefaultDependencyRoot is the directory dependency packages live under.
	DefaultDependencyRoot = "yelm_modules"
	// DefaultTarget is used when [compile].target is absent.
	DefaultTarget = "microbit"
)

var (
	ErrNoManifest            = errors.New("no " + ManifestFile + " found")
	ErrPackageSectionMissing = errors.New("missing [package]")
	ErrPackageNameMissing    = errors.New("missing [package].name")
	ErrFilesMissing          = errors.New("missing [package].files")
)

// ManifestError reports a manifest that could not be found, read or
// validated. Path is a disk path or a logical "<package>/kind.toml" path.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// Manifest is a parsed kind.toml.
type Manifest struct {
	Package      PackageConfig     `toml:"package"`
	Dependencies map[string]string `toml:"dependencies"`
	Compile      CompileConfig     `toml:"compile"`
}

type PackageConfig struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Files       []string `toml:"files"`
	TestFiles   []string `toml:"testFiles"`
}

type CompileConfig struct {
	Target string `toml:"target"`
}

// ParseManifest decodes and validates manifest text. where names the
// manifest in errors.
func ParseManifest(where, data string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.Decode(data, &m)
	if err != nil {
		return nil, &ManifestError{Path: where, Err: fmt.Errorf("failed to parse TOML: %w", err)}
	}
	if !meta.IsDefined("package") {
		return nil, &ManifestError{Path: where, Err: ErrPackageSectionMissing}
	}
	m.Package.Name = strings.TrimSpace(m.Package.Name)
	if !meta.IsDefined("package", "name") || m.Package.Name == "" {
		return nil, &ManifestError{Path: where, Err: ErrPackageNameMissing}
	}
	if !meta.IsDefined("package", "files") {
		return nil, &ManifestError{Path: where, Err: ErrFilesMissing}
	}
	for _, list := range [][]string{m.Package.Files, m.Package.TestFiles} {
		for i, f := range list {
			clean, err := cleanFileName(f)
			if err != nil {
				return nil, &ManifestError{Path: where, Err: err}
			}
			list[i] = clean
		}
	}
	for dep := range m.Dependencies {
		if !IsValidPackageName(dep) {
			return nil, &ManifestError{Path: where, Err: fmt.Errorf("invalid dependency name %q", dep)}
		}
		if dep == workspace.MainPackage {
			return nil, &ManifestError{Path: where, Err: fmt.Errorf("dependency name %q is reserved", dep)}
		}
	}
	m.Compile.Target = strings.TrimSpace(m.Compile.Target)
	if !meta.IsDefined("compile", "target") || m.Compile.Target == "" {
		m.Compile.Target = DefaultTarget
	}
	return &m, nil
}

// DependencyNames returns the declared dependencies, sorted.
func (m *Manifest) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllFiles returns declared files followed by test files.
func (m *Manifest) AllFiles() []string {
	out := make([]string, 0, len(m.Package.Files)+len(m.Package.TestFiles))
	out = append(out, m.Package.Files...)
	return append(out, m.Package.TestFiles...)
}

// IsValidPackageName reports whether name can be used as a dependency.
func IsValidPackageName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r > unicode.MaxASCII {
			return false
		}
		if i == 0 && !unicode.IsLetter(r) {
			return false
		}
		if i > 0 && r != '_' && r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// cleanFileName приводит имя файла пакета к виду "dir/file.ts" и запрещает выход за пределы пакета.
func cleanFileName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return "", errors.New("empty file name")
	}
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("file %q must be relative", name)
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("file %q escapes the package", name)
	}
	return clean, nil
}
