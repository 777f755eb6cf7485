// Package diagfmt reconciles compiler diagnostics with the editor model and
// renders them for people and tools.
package diagfmt

import (
	"fmt"
	"strings"

	"kside/internal/diag"
	"kside/internal/source"
	"kside/internal/workspace"
)

const (
	// OutputFile is the summary artifact in the output package.
	OutputFile = "output.txt"
	// SuccessMessage is the summary when there is nothing to report.
	SuccessMessage = "Everything seems fine!\n"
	// DefaultDependencyRoot prefixes dependency file names in diagnostics.
	DefaultDependencyRoot = "yelm_modules"
)

// Target is the editor model a Reducer writes into.
type Target interface {
	ForEachFile(fn func(*workspace.File))
	LookupFile(logical string) *workspace.File
	Output() *workspace.Package
}

// Reducer maps a flat diagnostic list onto per-file buckets and the
// summary artifact.
type Reducer struct {
	DependencyRoot string
	// Sources is the file snapshot the diagnostics were computed from,
	// keyed by compiler file name. It resolves offsets for files the editor
	// model does not hold.
	Sources map[string]string
}

// Summary is what one Apply pass produced.
type Summary struct {
	Text       string
	Total      int
	Attributed int
}

func (r Reducer) depRoot() string {
	if r.DependencyRoot == "" {
		return DefaultDependencyRoot
	}
	return strings.TrimSuffix(r.DependencyRoot, "/")
}

// LogicalPath maps a compiler file name to the "<package>/<file>" path the
// editor model uses. Dependency files lose the dependency-root prefix; a
// bare file name belongs to the main package.
func (r Reducer) LogicalPath(name string) string {
	name = strings.TrimPrefix(name, r.depRoot()+"/")
	if !strings.Contains(name, "/") {
		return workspace.MainPackage + "/" + name
	}
	return name
}

// Apply clears every file bucket in t, then files each diagnostic under the
// file it names and appends one summary line per diagnostic. The summary is
// stored as output.txt with a badge override equal to len(diags), whether or
// not every diagnostic could be attributed to a file.
func (r Reducer) Apply(t Target, diags []diag.Diagnostic) Summary {
	t.ForEachFile(func(f *workspace.File) {
		f.ClearDiagnostics()
	})

	var sb strings.Builder
	sum := Summary{Total: len(diags)}
	for _, d := range diags {
		var file *workspace.File
		if d.HasFile() {
			file = t.LookupFile(r.LogicalPath(d.File))
			if file != nil {
				file.AppendDiagnostic(d)
				sum.Attributed++
			}
		}
		sb.WriteString(r.FormatLine(d, file))
	}

	sum.Text = sb.String()
	if sum.Text == "" {
		sum.Text = SuccessMessage
	}
	t.Output().SetFile(OutputFile, sum.Text).SetDiagnosticCountOverride(sum.Total)
	return sum
}

// text returns the content d's offsets refer to: the editor file when there
// is one, else the source snapshot.
func (r Reducer) text(d diag.Diagnostic, file *workspace.File) (string, bool) {
	if file != nil {
		return file.Content(), true
	}
	content, ok := r.Sources[d.File]
	return content, ok
}

// Location returns the 1-based line and column of d. An explicit position
// wins. Otherwise Start is read as a UTF-16 character offset into the raw
// text of file, or of the Sources entry when file is nil. When neither holds
// the text the location is unresolved and ok is false.
func (r Reducer) Location(d diag.Diagnostic, file *workspace.File) (line, col int, ok bool) {
	if d.Pos != nil {
		return d.Pos.Line + 1, d.Pos.Character + 1, true
	}
	content, found := r.text(d, file)
	if !found || d.Start < 0 {
		return 0, 0, false
	}
	pos := source.NewFile(d.File, content).Position(d.Start)
	return int(pos.Line), int(pos.Col), true
}

// FormatLine renders one summary line, newline included. An unresolved
// location prints the file name alone.
func (r Reducer) FormatLine(d diag.Diagnostic, file *workspace.File) string {
	var sb strings.Builder
	if d.HasFile() {
		sb.WriteString(r.place(d, file))
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "%s %s: %s\n", d.Category, d.Code, d.Message)
	return sb.String()
}

func (r Reducer) place(d diag.Diagnostic, file *workspace.File) string {
	line, col, ok := r.Location(d, file)
	if !ok {
		return d.File
	}
	return fmt.Sprintf("%s(%d,%d)", d.File, line, col)
}
