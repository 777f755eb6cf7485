package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kside/internal/diag"
	"kside/internal/diagfmt"
)

// errDiagnostics makes the command exit non-zero once the report is out.
var errDiagnostics = errors.New("errors reported")

// renderDiagnostics prints diags in the requested format.
func renderDiagnostics(cmd *cobra.Command, s *session, diags []diag.Diagnostic, format string, maxDiagnostics int) error {
	r := s.bridge.Reducer()
	out := cmd.OutOrStdout()

	switch format {
	case "json":
		return diagfmt.WriteJSON(out, r, s.project.Editor, diags, diagfmt.JSONOpts{Max: maxDiagnostics, Indent: true})
	case "text", "pretty":
		if len(diags) == 0 {
			_, err := io.WriteString(out, diagfmt.SuccessMessage)
			return err
		}
		shown := diags
		if maxDiagnostics > 0 && len(shown) > maxDiagnostics {
			shown = shown[:maxDiagnostics]
		}
		opts := diagfmt.PrettyOpts{Color: useColor(cmd, os.Stdout), Context: true}
		if err := diagfmt.Pretty(out, r, s.project.Editor, shown, opts); err != nil {
			return err
		}
		if len(shown) < len(diags) {
			fmt.Fprintf(out, "... and %d more\n", len(diags)-len(shown))
		}
		fmt.Fprintln(out, countLine(diags))
		return nil
	default:
		return fmt.Errorf("unknown format %q (must be text or json)", format)
	}
}

func countLine(diags []diag.Diagnostic) string {
	errs := diag.Count(diags, diag.CategoryError)
	warns := diag.Count(diags, diag.CategoryWarning)
	parts := []string{plural(errs, "error"), plural(warns, "warning")}
	if other := len(diags) - errs - warns; other > 0 {
		parts = append(parts, plural(other, "message"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// printTimings writes the phase summary when --timings is set.
func printTimings(cmd *cobra.Command, s *session) {
	if s.timer == nil {
		return
	}
	fmt.Fprint(cmd.ErrOrStderr(), s.timer.Summary())
}
