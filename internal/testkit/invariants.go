// Package testkit holds checks shared by tests of packages that produce
// diagnostics.
package testkit

import (
	"fmt"

	"kside/internal/diag"
	"kside/internal/source"
)

// CheckDiagnosticInvariants runs a minimal set of invariants over diags
// produced for the given file contents:
// 1) a file-less diagnostic carries no span and no position
// 2) an attributed diagnostic names a file present in files
// 3) start and start+length stay within the file content, counted in
//    UTF-16 code units
// 4) a precomputed position agrees with the start offset
func CheckDiagnosticInvariants(diags []diag.Diagnostic, files map[string]string) error {
	parsed := make(map[string]*source.File, len(files))
	for i, d := range diags {
		if !d.HasFile() {
			if d.Start != 0 || d.Length != 0 || d.Pos != nil {
				return fmt.Errorf("diagnostic %d (%s): file-less diagnostic has a span", i, d.Code)
			}
			continue
		}
		content, ok := files[d.File]
		if !ok {
			return fmt.Errorf("diagnostic %d (%s): unknown file %q", i, d.Code, d.File)
		}
		sf := parsed[d.File]
		if sf == nil {
			sf = source.NewFile(d.File, content)
			parsed[d.File] = sf
		}

		if d.Start < 0 || d.Length < 0 {
			return fmt.Errorf("diagnostic %d (%s): negative span %d+%d", i, d.Code, d.Start, d.Length)
		}
		if end := d.Start + d.Length; end > sf.Len() {
			return fmt.Errorf("diagnostic %d (%s): span end beyond content: %d > %d", i, d.Code, end, sf.Len())
		}

		if d.Pos != nil {
			lc := sf.Position(d.Start)
			line, col := int(lc.Line)-1, int(lc.Col)-1
			if d.Pos.Line != line || d.Pos.Character != col {
				return fmt.Errorf("diagnostic %d (%s): position %d:%d disagrees with offset %d (%d:%d)",
					i, d.Code, d.Pos.Line, d.Pos.Character, d.Start, line, col)
			}
		}
	}
	return nil
}
