package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"kside/internal/workspace"
)

func TestParseManifestValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
		msg  string
	}{
		{name: "no package", data: "[compile]\ntarget = \"x\"\n", want: ErrPackageSectionMissing},
		{name: "no name", data: "[package]\nfiles = []\n", want: ErrPackageNameMissing},
		{name: "blank name", data: "[package]\nname = \"  \"\nfiles = []\n", want: ErrPackageNameMissing},
		{name: "no files", data: "[package]\nname = \"a\"\n", want: ErrFilesMissing},
		{name: "bad toml", data: "[package\n", msg: "failed to parse TOML"},
		{name: "escaping file", data: "[package]\nname = \"a\"\nfiles = [\"../x.ts\"]\n", msg: "escapes the package"},
		{name: "bad dep", data: "[package]\nname = \"a\"\nfiles = []\n[dependencies]\n\"9lives\" = \"*\"\n", msg: "invalid dependency name"},
		{name: "reserved dep", data: "[package]\nname = \"a\"\nfiles = []\n[dependencies]\nthis = \"*\"\n", msg: "reserved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest("this/kind.toml", tt.data)
			var me *ManifestError
			if !errors.As(err, &me) {
				t.Fatalf("expected *ManifestError, got %v", err)
			}
			if me.Path != "this/kind.toml" {
				t.Errorf("path = %q", me.Path)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("expected %q in %v", tt.msg, err)
			}
		})
	}
}

func TestParseManifestDefaults(t *testing.T) {
	m, err := ParseManifest("kind.toml", "[package]\nname = \"a\"\nfiles = [\"./src\\\\main.ts\"]\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Compile.Target != DefaultTarget {
		t.Errorf("target = %q, want %q", m.Compile.Target, DefaultTarget)
	}
	if !reflect.DeepEqual(m.Package.Files, []string{"src/main.ts"}) {
		t.Errorf("files = %v", m.Package.Files)
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	root := writeBlink(t)
	sub := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	path, ok, err := FindManifest(sub)
	if err != nil || !ok {
		t.Fatalf("FindManifest = %q, %v, %v", path, ok, err)
	}
	if path != filepath.Join(root, ManifestFile) {
		t.Fatalf("path = %q", path)
	}
	if got, ok, _ := FindProjectRoot(sub); !ok || got != root {
		t.Fatalf("FindProjectRoot = %q, %v", got, ok)
	}
}

func TestLoadAndCompileOptions(t *testing.T) {
	root := writeBlink(t)
	p, err := Load(root, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Editor.Name() != "blink" {
		t.Fatalf("editor name = %q", p.Editor.Name())
	}
	if p.Editor.LookupFile("radio/radio.ts") == nil || p.Editor.LookupFile("core/core.ts") == nil {
		t.Fatal("dependencies not loaded")
	}
	if p.Editor.LookupFile("this/gone.ts") != nil {
		t.Fatal("missing file must not be in the model")
	}

	opts, err := p.Provider().CompileOptions(context.Background())
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Target != "microbit" || opts.ArtifactName() != "microbit.hex" {
		t.Fatalf("target = %q", opts.Target)
	}
	wantSources := []string{
		"yelm_modules/core/core.ts",
		"yelm_modules/radio/radio.ts",
		"main.ts",
		"gone.ts",
	}
	if !reflect.DeepEqual(opts.SourceFiles, wantSources) {
		t.Fatalf("sources = %v, want %v", opts.SourceFiles, wantSources)
	}
	if _, ok := opts.FileSystem["gone.ts"]; ok {
		t.Fatal("missing file must not be in the file system")
	}
	for _, key := range []string{"kind.toml", "README.md", "main.ts", "yelm_modules/radio/kind.toml", "yelm_modules/core/core.ts"} {
		if _, ok := opts.FileSystem[key]; !ok {
			t.Errorf("file system lacks %q", key)
		}
	}
	if _, ok := opts.FileSystem["test.ts"]; ok {
		t.Error("test files are excluded by default")
	}

	withTests, err := p.Provider(WithTests(true), WithTarget("arcade")).CompileOptions(context.Background())
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if withTests.Target != "arcade" || withTests.FileSystem["test.ts"] == "" {
		t.Fatalf("unexpected options %+v", withTests)
	}
}

func TestLoadMissingDependency(t *testing.T) {
	root := writeBlink(t)
	if err := os.RemoveAll(filepath.Join(root, "yelm_modules", "core")); err != nil {
		t.Fatal(err)
	}
	_, err := Load(root, "")
	var me *ManifestError
	if !errors.As(err, &me) || !errors.Is(err, ErrNoManifest) {
		t.Fatalf("expected missing manifest error, got %v", err)
	}
	if !strings.Contains(me.Path, filepath.Join("yelm_modules", "core")) {
		t.Fatalf("path = %q", me.Path)
	}
}

func TestLoadNoManifest(t *testing.T) {
	_, err := Load(t.TempDir(), "")
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("expected ErrNoManifest, got %v", err)
	}
}

func TestProviderManifestFailures(t *testing.T) {
	ed := workspace.NewEditor("x")
	_, err := NewProvider(ed).CompileOptions(context.Background())
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("no manifest: %v", err)
	}

	ed.Main().SetFile(ManifestFile, "[package]\nname = \"x\"\nfiles = []\n[dependencies]\nlib = \"*\"\n")
	_, err = NewProvider(ed).CompileOptions(context.Background())
	var me *ManifestError
	if !errors.As(err, &me) || me.Path != "yelm_modules/lib/kind.toml" {
		t.Fatalf("unloaded dependency: %v", err)
	}

	lib := workspace.NewPackage("lib")
	lib.SetFile(ManifestFile, "[package]\nname = \"lib\"\nfiles = []\n[dependencies]\nlib2 = \"*\"\n")
	lib2 := workspace.NewPackage("lib2")
	lib2.SetFile(ManifestFile, "[package]\nname = \"lib2\"\nfiles = []\n[dependencies]\nlib = \"*\"\n")
	ed.AddPackage(lib)
	ed.AddPackage(lib2)
	_, err = NewProvider(ed).CompileOptions(context.Background())
	if err == nil || !strings.Contains(err.Error(), "dependency cycle: lib -> lib2") {
		t.Fatalf("cycle: %v", err)
	}
}

func TestProviderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider(workspace.NewEditor("x")).CompileOptions(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLocateAndRefresh(t *testing.T) {
	root := writeBlink(t)
	p, err := Load(root, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tests := []struct {
		path      string
		pkg, file string
		ok        bool
	}{
		{filepath.Join(root, "main.ts"), "this", "main.ts", true},
		{filepath.Join(root, "yelm_modules", "radio", "radio.ts"), "radio", "radio.ts", true},
		{filepath.Join(root, "yelm_modules", "radio"), "", "", false},
		{filepath.Join(filepath.Dir(root), "elsewhere.ts"), "", "", false},
	}
	for _, tt := range tests {
		pkg, file, ok := p.Locate(tt.path)
		if pkg != tt.pkg || file != tt.file || ok != tt.ok {
			t.Errorf("Locate(%q) = %q, %q, %v", tt.path, pkg, file, ok)
		}
	}

	mainPath := writeFile(t, root, "main.ts", "basic.showNumber(1)\n")
	changed, err := p.Refresh(mainPath)
	if err != nil || !changed {
		t.Fatalf("Refresh = %v, %v", changed, err)
	}
	if got := p.Editor.LookupFile("this/main.ts").Content(); got != "basic.showNumber(1)\n" {
		t.Fatalf("content = %q", got)
	}
	if changed, _ := p.Refresh(mainPath); changed {
		t.Fatal("unchanged content must not report a change")
	}

	gonePath := writeFile(t, root, "gone.ts", "let x = 1\n")
	if changed, err := p.Refresh(gonePath); err != nil || !changed {
		t.Fatalf("declared new file: %v, %v", changed, err)
	}
	if p.Editor.LookupFile("this/gone.ts") == nil {
		t.Fatal("declared file should now be loaded")
	}

	strayPath := writeFile(t, root, "stray.ts", "")
	if changed, _ := p.Refresh(strayPath); changed {
		t.Fatal("undeclared file must be ignored")
	}
}
