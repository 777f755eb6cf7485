package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

const blinkManifest = `
[package]
name = "blink"
files = ["main.ts", "README.md", "gone.ts"]
testFiles = ["test.ts"]

[dependencies]
radio = "*"

[compile]
target = "microbit"
`

const radioManifest = `
[package]
name = "radio"
files = ["radio.ts"]

[dependencies]
core = "*"
`

const coreManifest = `
[package]
name = "core"
files = ["core.ts"]
`

// writeBlink lays out a package with a two-level dependency chain.
func writeBlink(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "kind.toml", blinkManifest)
	writeFile(t, root, "main.ts", "basic.showString(\"hi\")\n")
	writeFile(t, root, "README.md", "# blink\n")
	writeFile(t, root, "test.ts", "control.assert(true)\n")
	writeFile(t, root, "yelm_modules/radio/kind.toml", radioManifest)
	writeFile(t, root, "yelm_modules/radio/radio.ts", "namespace radio {}\n")
	writeFile(t, root, "yelm_modules/core/kind.toml", coreManifest)
	writeFile(t, root, "yelm_modules/core/core.ts", "namespace basic {}\n")
	return root
}
