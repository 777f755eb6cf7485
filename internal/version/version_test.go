package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestDescribe(t *testing.T) {
	origCommit, origDate := GitCommit, BuildDate
	defer func() { GitCommit, BuildDate = origCommit, origDate }()

	GitCommit = "abc123"
	BuildDate = ""
	got := Describe(false)
	if !strings.HasPrefix(got, "kside "+Version+"\n") {
		t.Fatalf("unexpected first line: %q", got)
	}
	if !strings.Contains(got, "commit: abc123\n") {
		t.Errorf("missing commit line: %q", got)
	}
	if strings.Contains(got, "built:") {
		t.Errorf("empty build date must be omitted: %q", got)
	}
}

func TestColored(t *testing.T) {
	origVersion := Version
	origNoColor := color.NoColor
	defer func() { Version, color.NoColor = origVersion, origNoColor }()

	color.NoColor = true
	tests := []struct {
		in, want string
	}{
		{"1.2.3", "1.2.3"},
		{"0.1.0-dev", "0.1.0-dev"},
		{"nightly", "nightly"},
	}
	for _, tt := range tests {
		Version = tt.in
		if got := Colored(); got != tt.want {
			t.Errorf("Colored() with %q = %q, want %q", tt.in, got, tt.want)
		}
	}

	color.NoColor = false
	Version = "1.2.3"
	if got := Colored(); got == "1.2.3" || !strings.Contains(got, "\x1b[") {
		t.Errorf("expected escape sequences, got %q", got)
	}
}
