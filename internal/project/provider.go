package project

import (
	"context"
	"fmt"
	"path"

	"kside/internal/project/dag"
	"kside/internal/workspace"
)

// Provider builds CompileOptions from the in-memory editor model.
type Provider struct {
	editor  *workspace.Editor
	depRoot string
	target  string
	tests   bool
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithDependencyRoot sets the directory prefix of dependency files.
func WithDependencyRoot(root string) ProviderOption {
	return func(p *Provider) {
		if root != "" {
			p.depRoot = root
		}
	}
}

// WithTarget overrides the manifest's compile target.
func WithTarget(target string) ProviderOption {
	return func(p *Provider) { p.target = target }
}

// WithTests compiles declared test files as well.
func WithTests(on bool) ProviderOption {
	return func(p *Provider) { p.tests = on }
}

// NewProvider creates a Provider over ed.
func NewProvider(ed *workspace.Editor, opts ...ProviderOption) *Provider {
	p := &Provider{editor: ed, depRoot: DefaultDependencyRoot}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type loadedPackage struct {
	pkg      *workspace.Package
	manifest *Manifest
	prefix   string // file key prefix in the file system snapshot
}

// CompileOptions reads every manifest reachable from the main package and
// snapshots their files. Dependencies come before their dependents in
// SourceFiles. A declared file missing from the model is still listed in
// SourceFiles so the compiler reports it.
func (p *Provider) CompileOptions(ctx context.Context) (*CompileOptions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mainPkg := p.editor.Main()
	mainManifest, err := readManifest(mainPkg)
	if err != nil {
		return nil, err
	}

	loaded := map[string]loadedPackage{
		workspace.MainPackage: {pkg: mainPkg, manifest: mainManifest},
	}
	nodes := []dag.Node{{Name: workspace.MainPackage, Deps: mainManifest.DependencyNames()}}
	queue := mainManifest.DependencyNames()
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, ok := loaded[name]; ok {
			continue
		}
		pkg := p.editor.Package(name)
		if pkg == nil {
			return nil, &ManifestError{
				Path: path.Join(p.depRoot, name, ManifestFile),
				Err:  fmt.Errorf("dependency %q is not loaded", name),
			}
		}
		m, err := readManifest(pkg)
		if err != nil {
			return nil, err
		}
		loaded[name] = loadedPackage{pkg: pkg, manifest: m, prefix: path.Join(p.depRoot, name) + "/"}
		nodes = append(nodes, dag.Node{Name: name, Deps: m.DependencyNames()})
		queue = append(queue, m.DependencyNames()...)
	}

	idx := dag.BuildIndex(nodes)
	g, problems := dag.BuildGraph(idx, nodes)
	if len(problems) > 0 {
		return nil, &ManifestError{Path: manifestPath(loaded[problems[0].Package]), Err: fmt.Errorf("%s", problems[0])}
	}
	topo := dag.ToposortKahn(g)
	if cycle, ok := dag.CycleProblem(idx, topo); ok {
		return nil, &ManifestError{Path: manifestPath(loaded[cycle.Package]), Err: fmt.Errorf("%s", cycle)}
	}

	target := mainManifest.Compile.Target
	if p.target != "" {
		target = p.target
	}
	opts := &CompileOptions{
		Target:      target,
		SourceFiles: []string{},
		FileSystem:  make(map[string]string),
	}
	for _, name := range dag.Names(idx, topo.Order) {
		lp := loaded[name]
		if mf := lp.pkg.File(ManifestFile); mf != nil {
			opts.FileSystem[lp.prefix+ManifestFile] = mf.Content()
		}
		files := lp.manifest.Package.Files
		if p.tests && name == workspace.MainPackage {
			files = lp.manifest.AllFiles()
		}
		for _, file := range files {
			key := lp.prefix + workspace.NormalizeName(file)
			if IsSourceFile(file) {
				opts.SourceFiles = append(opts.SourceFiles, key)
			}
			if f := lp.pkg.File(file); f != nil {
				opts.FileSystem[key] = f.Content()
			}
		}
	}
	return opts, nil
}

func readManifest(pkg *workspace.Package) (*Manifest, error) {
	where := pkg.Name() + "/" + ManifestFile
	f := pkg.File(ManifestFile)
	if f == nil {
		return nil, &ManifestError{Path: where, Err: ErrNoManifest}
	}
	return ParseManifest(where, f.Content())
}

func manifestPath(lp loadedPackage) string {
	if lp.pkg == nil {
		return ManifestFile
	}
	return lp.pkg.Name() + "/" + ManifestFile
}
