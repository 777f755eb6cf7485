package diagfmt

import (
	"encoding/json"
	"io"

	"kside/internal/diag"
)

// LocationJSON представляет местоположение диагностики для JSON
type LocationJSON struct {
	File    string `json:"file"`
	Logical string `json:"logical"`
	Start   int    `json:"start"`
	Length  int    `json:"length,omitempty"`
	Line    int    `json:"line,omitempty"` // 0 when unresolved
	Col     int    `json:"col,omitempty"`
}

// DiagnosticJSON представляет диагностику в JSON формате
type DiagnosticJSON struct {
	Category string        `json:"category"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Location *LocationJSON `json:"location,omitempty"`
	Attached bool          `json:"attached"`
}

// SummaryJSON counts diagnostics by category.
type SummaryJSON struct {
	Total       int `json:"total"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
	Messages    int `json:"messages"`
	Suggestions int `json:"suggestions,omitempty"`
}

// DiagnosticsOutput представляет корневую структуру JSON вывода
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Summary     SummaryJSON      `json:"summary"`
}

// JSONOpts configures JSON output.
type JSONOpts struct {
	Max    int // обрезка вывода (0 - без ограничений); summary считает всё
	Indent bool
}

// BuildJSON converts diags into the JSON report. Attached tells whether the
// diagnostic landed in a file bucket.
func BuildJSON(r Reducer, t Target, diags []diag.Diagnostic, opts JSONOpts) DiagnosticsOutput {
	out := DiagnosticsOutput{
		Diagnostics: make([]DiagnosticJSON, 0, len(diags)),
		Summary: SummaryJSON{
			Total:       len(diags),
			Errors:      diag.Count(diags, diag.CategoryError),
			Warnings:    diag.Count(diags, diag.CategoryWarning),
			Messages:    diag.Count(diags, diag.CategoryMessage),
			Suggestions: diag.Count(diags, diag.CategorySuggestion),
		},
	}
	for i, d := range diags {
		if opts.Max > 0 && i >= opts.Max {
			break
		}
		item := DiagnosticJSON{
			Category: d.Category.String(),
			Code:     d.Code.String(),
			Message:  d.Message,
		}
		if d.HasFile() {
			logical := r.LogicalPath(d.File)
			file := t.LookupFile(logical)
			line, col, _ := r.Location(d, file)
			item.Attached = file != nil
			item.Location = &LocationJSON{
				File:    d.File,
				Logical: logical,
				Start:   d.Start,
				Length:  d.Length,
				Line:    line,
				Col:     col,
			}
		}
		out.Diagnostics = append(out.Diagnostics, item)
	}
	return out
}

// WriteJSON writes the JSON report to w.
func WriteJSON(w io.Writer, r Reducer, t Target, diags []diag.Diagnostic, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(BuildJSON(r, t, diags, opts))
}
