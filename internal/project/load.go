package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kside/internal/workspace"
)

// Project is a package loaded from disk into an editor model.
type Project struct {
	Root           string
	ManifestPath   string
	DependencyRoot string
	Manifest       *Manifest
	Editor         *workspace.Editor
}

// Load finds kind.toml at or above startDir and loads the package, its
// declared files and, transitively, its dependencies from
// <root>/<depRoot>/<name>. Declared files missing on disk are skipped; the
// compiler reports them.
func Load(startDir, depRoot string) (*Project, error) {
	if depRoot == "" {
		depRoot = DefaultDependencyRoot
	}
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		abs, _ := filepath.Abs(startDir)
		return nil, &ManifestError{Path: filepath.Join(abs, ManifestFile), Err: ErrNoManifest}
	}
	root := filepath.Dir(manifestPath)

	main, m, err := loadPackage(workspace.MainPackage, root)
	if err != nil {
		return nil, err
	}
	ed := workspace.NewEditor(m.Package.Name)
	copyFiles(ed.Main(), main)

	seen := map[string]bool{}
	queue := m.DependencyNames()
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		pkg, dm, err := loadPackage(name, filepath.Join(root, filepath.FromSlash(depRoot), name))
		if err != nil {
			return nil, err
		}
		ed.AddPackage(pkg)
		queue = append(queue, dm.DependencyNames()...)
	}

	return &Project{
		Root:           root,
		ManifestPath:   manifestPath,
		DependencyRoot: depRoot,
		Manifest:       m,
		Editor:         ed,
	}, nil
}

func loadPackage(name, dir string) (*workspace.Package, *Manifest, error) {
	mpath := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(mpath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, &ManifestError{Path: mpath, Err: ErrNoManifest}
		}
		return nil, nil, &ManifestError{Path: mpath, Err: err}
	}
	m, err := ParseManifest(mpath, string(data))
	if err != nil {
		return nil, nil, err
	}
	pkg := workspace.NewPackage(name)
	pkg.SetFile(ManifestFile, string(data))
	for _, file := range m.AllFiles() {
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(file)))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		pkg.SetFile(file, string(content))
	}
	return pkg, m, nil
}

func copyFiles(dst, src *workspace.Package) {
	src.ForEachFile(func(f *workspace.File) {
		dst.SetFile(f.Name(), f.Content())
	})
}

// Provider returns a CompileOptions provider over the loaded editor model.
func (p *Project) Provider(opts ...ProviderOption) *Provider {
	all := append([]ProviderOption{WithDependencyRoot(p.DependencyRoot)}, opts...)
	return NewProvider(p.Editor, all...)
}

// Locate maps a disk path to the package and file name it is loaded as.
// ok is false for paths outside the project.
func (p *Project) Locate(diskPath string) (pkg, file string, ok bool) {
	abs, err := filepath.Abs(diskPath)
	if err != nil {
		return "", "", false
	}
	rel, err := filepath.Rel(p.Root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", "", false
	}
	rel = filepath.ToSlash(rel)
	prefix := strings.TrimSuffix(filepath.ToSlash(p.DependencyRoot), "/") + "/"
	if dep, ok := strings.CutPrefix(rel, prefix); ok {
		name, file, found := strings.Cut(dep, "/")
		if !found || file == "" {
			return "", "", false
		}
		return name, file, true
	}
	return workspace.MainPackage, rel, true
}

// Refresh re-reads diskPath into the editor model if it is a file the
// model holds. It reports whether the model changed. A manifest edit that
// adds dependencies needs a full Load to bring them in.
func (p *Project) Refresh(diskPath string) (bool, error) {
	pkgName, file, ok := p.Locate(diskPath)
	if !ok {
		return false, nil
	}
	pkg := p.Editor.Package(pkgName)
	if pkg == nil {
		return false, nil
	}
	f := pkg.File(file)
	if f == nil && !declares(pkg, file) {
		return false, nil
	}
	content, err := os.ReadFile(diskPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pkg.RemoveFile(file), nil
		}
		return false, err
	}
	if f == nil {
		pkg.SetFile(file, string(content))
		return true, nil
	}
	if string(content) == f.Content() {
		return false, nil
	}
	f.SetContent(string(content))
	return true, nil
}

func declares(pkg *workspace.Package, file string) bool {
	m, err := readManifest(pkg)
	if err != nil {
		return false
	}
	for _, f := range m.AllFiles() {
		if workspace.NormalizeName(f) == workspace.NormalizeName(file) {
			return true
		}
	}
	return false
}
