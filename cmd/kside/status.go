package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"kside/internal/diag"
)

// statusLine renders one watch status line per typecheck.
type statusLine struct {
	out      io.Writer
	tty      bool
	width    func() int
	lastSize int
}

func newStatusLine(out io.Writer, f *os.File) *statusLine {
	s := &statusLine{out: out, tty: isTerminal(f)}
	s.width = func() int {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
		return 80
	}
	return s
}

// formatStatus builds the status text, cut to width display cells.
func formatStatus(now time.Time, diags []diag.Diagnostic, changed []string, err error, width int) string {
	var sb strings.Builder
	sb.WriteString(now.Format("15:04:05"))
	sb.WriteString("  ")
	switch {
	case err != nil:
		sb.WriteString("failed: " + err.Error())
	case len(diags) == 0:
		sb.WriteString("ok")
	default:
		sb.WriteString(countLine(diags))
	}
	if len(changed) > 0 {
		names := make([]string, len(changed))
		for i, p := range changed {
			names[i] = filepath.Base(p)
		}
		sb.WriteString("  (" + strings.Join(names, ", ") + ")")
	}
	line := strings.ReplaceAll(sb.String(), "\n", " ")
	if width > 0 && runewidth.StringWidth(line) > width {
		line = runewidth.Truncate(line, width, "…")
	}
	return line
}

func (s *statusLine) Print(diags []diag.Diagnostic, changed []string, err error) {
	width := s.width()
	if s.tty {
		// leave the last cell free so the cursor does not wrap
		width--
	}
	line := formatStatus(time.Now(), diags, changed, err, width)
	if !s.tty {
		fmt.Fprintln(s.out, line)
		return
	}
	fmt.Fprint(s.out, "\r"+line+strings.Repeat(" ", max(0, s.lastSize-runewidth.StringWidth(line))))
	s.lastSize = runewidth.StringWidth(line)
}

// Break ends the current status line so other output starts on a new one.
func (s *statusLine) Break() {
	if s.tty && s.lastSize > 0 {
		fmt.Fprintln(s.out)
		s.lastSize = 0
	}
}
