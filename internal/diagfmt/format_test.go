package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"kside/internal/diag"
	"kside/internal/workspace"
)

func TestPrettyWithContext(t *testing.T) {
	ed := workspace.NewEditor("x")
	ed.Main().SetFile("m.ts", "let a = 1\n\tlet b = (\n")
	diags := []diag.Diagnostic{
		{File: "m.ts", Start: 19, Category: diag.CategoryError, Code: 1005, Message: "')' expected."},
		diag.New(diag.CategoryWarning, 1208, "File 'x.ts' is empty."),
	}

	var buf bytes.Buffer
	if err := Pretty(&buf, Reducer{}, ed, diags, PrettyOpts{Context: true}); err != nil {
		t.Fatalf("Pretty: %v", err)
	}
	want := "m.ts(2,10): error TS1005: ')' expected.\n" +
		"    \tlet b = (\n" +
		"    \t        ^\n" +
		"warning TS1208: File 'x.ts' is empty.\n"
	if buf.String() != want {
		t.Fatalf("Pretty =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestPrettyColor(t *testing.T) {
	ed := workspace.NewEditor("x")
	var buf bytes.Buffer
	diags := []diag.Diagnostic{diag.New(diag.CategoryError, 1, "boom")}
	if err := Pretty(&buf, Reducer{}, ed, diags, PrettyOpts{Color: true}); err != nil {
		t.Fatalf("Pretty: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected color escapes: %q", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	ed := workspace.NewEditor("x")
	ed.Main().SetFile("a.ts", "")
	diags := []diag.Diagnostic{
		diag.At("a.ts", 0, 1, diag.Position{Line: 9, Character: 4}, diag.CategoryError, 1001, "msg1"),
		diag.At("ghost.ts", 0, 1, diag.Position{}, diag.CategoryError, 6053, "missing"),
		diag.New(diag.CategoryWarning, 2002, "msg2"),
	}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Reducer{}, ed, diags, JSONOpts{Max: 2}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Summary != (SummaryJSON{Total: 3, Errors: 2, Warnings: 1}) {
		t.Fatalf("summary = %+v", out.Summary)
	}
	if len(out.Diagnostics) != 2 {
		t.Fatalf("expected Max to truncate to 2, got %d", len(out.Diagnostics))
	}
	first := out.Diagnostics[0]
	if !first.Attached || first.Location.Logical != "this/a.ts" || first.Location.Line != 10 || first.Location.Col != 5 {
		t.Fatalf("first = %+v / %+v", first, first.Location)
	}
	if out.Diagnostics[1].Attached {
		t.Fatal("ghost.ts must not be attached")
	}
}
