package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"kside/internal/diag"
	"kside/internal/source"
)

// PrettyOpts configures terminal rendering of diagnostics.
type PrettyOpts struct {
	Color   bool
	Context bool // print the source line with a caret under the column
}

var (
	errorColor      = color.New(color.FgRed, color.Bold)
	warningColor    = color.New(color.FgYellow, color.Bold)
	messageColor    = color.New(color.FgCyan)
	suggestionColor = color.New(color.FgMagenta)
	pathColor       = color.New(color.Bold)
	caretColor      = color.New(color.FgGreen, color.Bold)
)

// Pretty writes diags the way the summary does, optionally colored and with
// source context. Files are resolved through r and t.
func Pretty(w io.Writer, r Reducer, t Target, diags []diag.Diagnostic, opts PrettyOpts) error {
	paint := func(c *color.Color, s string) string {
		if !opts.Color {
			return s
		}
		c.EnableColor()
		return c.Sprint(s)
	}

	for _, d := range diags {
		var sb strings.Builder
		var line, col int
		var text string
		if d.HasFile() {
			file := t.LookupFile(r.LogicalPath(d.File))
			sb.WriteString(paint(pathColor, r.place(d, file)))
			sb.WriteString(": ")
			var ok bool
			if line, col, ok = r.Location(d, file); ok {
				if content, found := r.text(d, file); found {
					text = strings.TrimRight(source.NewFile(d.File, content).Line(line), " \t")
				}
			}
		}
		sb.WriteString(paint(categoryColor(d.Category), d.Category.String()))
		fmt.Fprintf(&sb, " %s: %s\n", d.Code, d.Message)
		if opts.Context && text != "" {
			fmt.Fprintf(&sb, "    %s\n", text)
			fmt.Fprintf(&sb, "    %s%s\n", caretPad(text, col), paint(caretColor, "^"))
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

func categoryColor(c diag.Category) *color.Color {
	switch c {
	case diag.CategoryError:
		return errorColor
	case diag.CategoryWarning:
		return warningColor
	case diag.CategorySuggestion:
		return suggestionColor
	default:
		return messageColor
	}
}

// caretPad keeps tabs so the caret lines up under tab-indented code.
func caretPad(text string, col int) string {
	var sb strings.Builder
	i := 0
	for _, r := range text {
		if i >= col-1 {
			break
		}
		if r == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
		i++
	}
	return sb.String()
}
